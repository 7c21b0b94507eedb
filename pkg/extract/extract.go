package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/Sriram-PR/review-scraper/pkg/config"
	"github.com/Sriram-PR/review-scraper/pkg/models"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

const noHotelRating = "Нет"

var firstInt = regexp.MustCompile(`\d+`)

// listMatchers and hotelMatchers hold compiled selectors
type listMatchers struct {
	container, link, reviewsCount, rating goquery.Matcher
}

type hotelMatchers struct {
	item, rating, date, dateMeta, title, teaser, plus, minus goquery.Matcher
	author, location, recommendations, comments, images     goquery.Matcher
}

// Extractor turns listing and hotel page HTML into descriptors and review records.
// Selectors are compiled once; a failing item is logged and skipped.
type Extractor struct {
	list       listMatchers
	hotel      hotelMatchers
	siteRoot   *url.URL
	maxHotels  int
	maxReviews int
	now        func() time.Time
	log        *logrus.Entry
}

// New compiles the configured selectors. An invalid selector is a configuration error.
func New(sel config.SelectorsConfig, limits config.LimitsConfig, siteRoot string, log *logrus.Entry) (*Extractor, error) {
	root, err := url.Parse(siteRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: site root %q: %w", utils.ErrConfigValidation, siteRoot, err)
	}

	c := &compiler{}
	e := &Extractor{
		list: listMatchers{
			container:    c.compile("list_page.hotel_container", sel.ListPage.HotelContainer),
			link:         c.compile("list_page.hotel_link", sel.ListPage.HotelLink),
			reviewsCount: c.compile("list_page.reviews_count", sel.ListPage.ReviewsCount),
			rating:       c.compile("list_page.rating", sel.ListPage.Rating),
		},
		hotel: hotelMatchers{
			item:            c.compile("hotel_page.review_item", sel.HotelPage.ReviewItem),
			rating:          c.compile("hotel_page.review_rating", sel.HotelPage.ReviewRating),
			date:            c.compile("hotel_page.review_date", sel.HotelPage.ReviewDate),
			dateMeta:        c.compile("hotel_page.review_date_meta", sel.HotelPage.ReviewDateMeta),
			title:           c.compile("hotel_page.review_title", sel.HotelPage.ReviewTitle),
			teaser:          c.compile("hotel_page.review_teaser", sel.HotelPage.ReviewTeaser),
			plus:            c.compile("hotel_page.review_plus", sel.HotelPage.ReviewPlus),
			minus:           c.compile("hotel_page.review_minus", sel.HotelPage.ReviewMinus),
			author:          c.compile("hotel_page.review_author", sel.HotelPage.ReviewAuthor),
			location:        c.compile("hotel_page.review_author_location", sel.HotelPage.ReviewAuthorLocation),
			recommendations: c.compile("hotel_page.review_recommendations", sel.HotelPage.ReviewRecommendations),
			comments:        c.compile("hotel_page.review_comments", sel.HotelPage.ReviewComments),
			images:          c.compile("hotel_page.review_images", sel.HotelPage.ReviewImages),
		},
		siteRoot:   root,
		maxHotels:  limits.MaxHotelsPerPage,
		maxReviews: limits.MaxReviewsPerHotel,
		now:        time.Now,
		log:        log,
	}
	if c.err != nil {
		return nil, c.err
	}
	return e, nil
}

// compiler collects the first selector compile error
type compiler struct {
	err error
}

// emptyMatcher matches nothing; used for optional selectors left blank
var emptyMatcher = cascadia.Selector(func(*html.Node) bool { return false })

func (c *compiler) compile(name, selector string) goquery.Matcher {
	if strings.TrimSpace(selector) == "" {
		return emptyMatcher
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		if c.err == nil {
			c.err = fmt.Errorf("%w: selector %s %q: %w", utils.ErrConfigValidation, name, selector, err)
		}
		return emptyMatcher
	}
	return m
}

// ExtractHotels returns the hotels listed on a listing page, at most max_hotels_per_page
func (e *Extractor) ExtractHotels(html string, page int, pageURL string) []models.HotelDescriptor {
	pageLog := e.log.WithField("page", page)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		pageLog.Errorf("%v: listing page: %v", utils.ErrParsing, err)
		return nil
	}

	containers := doc.FindMatcher(e.list.container)
	if containers.Length() == 0 {
		pageLog.Warn("No hotels found on listing page")
		return nil
	}
	pageLog.Infof("Found %d hotels on listing page", containers.Length())

	var hotels []models.HotelDescriptor
	containers.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if e.maxHotels > 0 && i >= e.maxHotels {
			return false
		}
		hotel, ok, err := e.hotelFromContainer(s, page, pageURL)
		if err != nil {
			pageLog.WithField("index", i).Errorf("%v", err)
			return true
		}
		if ok {
			hotels = append(hotels, hotel)
		}
		return true
	})
	return hotels
}

func (e *Extractor) hotelFromContainer(s *goquery.Selection, page int, pageURL string) (hotel models.HotelDescriptor, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: hotel container: %v", utils.ErrExtractorItem, r)
		}
	}()

	link := s.FindMatcher(e.list.link).First()
	href, exists := link.Attr("href")
	href = strings.TrimSpace(href)
	if !exists || href == "" {
		return hotel, false, nil
	}

	hotelURL := href
	if !strings.HasPrefix(href, "http") {
		ref, perr := url.Parse(href)
		if perr != nil {
			return hotel, false, fmt.Errorf("%w: hotel href %q: %w", utils.ErrExtractorItem, href, perr)
		}
		hotelURL = e.siteRoot.ResolveReference(ref).String()
	}

	reviewCount := 0
	if m := firstInt.FindString(s.FindMatcher(e.list.reviewsCount).First().Text()); m != "" {
		reviewCount, _ = strconv.Atoi(m)
	}

	rating := noHotelRating
	if r := s.FindMatcher(e.list.rating).First(); r.Length() > 0 {
		rating = strings.TrimSpace(r.Text())
	}

	return models.HotelDescriptor{
		ID:          utils.HotelID(hotelURL),
		Name:        strings.TrimSpace(link.Text()),
		URL:         hotelURL,
		ReviewCount: reviewCount,
		Rating:      rating,
		ListPage:    page,
		ListURL:     pageURL,
	}, true, nil
}

// ExtractReviews returns the reviews on a hotel page, at most max_reviews_per_hotel
func (e *Extractor) ExtractReviews(html string, hotel models.HotelDescriptor) []models.ReviewRecord {
	hotelLog := e.log.WithField("hotel_url", hotel.URL)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		hotelLog.Errorf("%v: hotel page: %v", utils.ErrParsing, err)
		return nil
	}

	items := doc.FindMatcher(e.hotel.item)
	if items.Length() == 0 {
		hotelLog.Infof("No reviews found on page of '%s'", hotel.Name)
		return nil
	}
	hotelLog.Infof("Found %d reviews on page of '%s'", items.Length(), hotel.Name)

	scrapedAt := e.now()
	var reviews []models.ReviewRecord
	items.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if e.maxReviews > 0 && i >= e.maxReviews {
			return false
		}
		rec, err := e.reviewFromItem(s, hotel, scrapedAt)
		if err != nil {
			hotelLog.WithField("index", i+1).Errorf("%v", err)
			return true
		}
		reviews = append(reviews, rec)
		return true
	})
	return reviews
}

func (e *Extractor) reviewFromItem(s *goquery.Selection, hotel models.HotelDescriptor, scrapedAt time.Time) (rec models.ReviewRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: review item: %v", utils.ErrExtractorItem, r)
		}
	}()

	text := func(m goquery.Matcher) string {
		return strings.TrimSpace(s.FindMatcher(m).First().Text())
	}

	rating := parseRating(text(e.hotel.rating))
	date := e.extractDate(s)

	title := text(e.hotel.title)
	teaser := text(e.hotel.teaser)
	plus := stripLabel(text(e.hotel.plus), "Достоинства:")
	minus := stripLabel(text(e.hotel.minus), "Недостатки:")
	author := text(e.hotel.author)

	var images []string
	s.FindMatcher(e.hotel.images).Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && src != "" {
			images = append(images, src)
		}
	})

	rec = models.ReviewRecord{
		ReviewID:    utils.ReviewID(hotel.ID, hotel.URL, title, date.Display, author, teaser),
		HotelID:     hotel.ID,
		HotelName:   hotel.Name,
		HotelURL:    hotel.URL,
		HotelRating: hotel.Rating,

		RatingText:    rating.Text,
		RatingNumeric: rating.Numeric,
		RatingStars:   rating.Stars,

		Title:  title,
		Text:   composeText(title, teaser, plus, minus),
		Teaser: teaser,
		Plus:   plus,
		Minus:  minus,

		Date:       date.Display,
		DateISO:    date.ISO,
		DateRaw:    date.Raw,
		Year:       date.Year,
		Month:      date.Month,
		Day:        date.Day,
		Before2020: date.Before(2020),

		Author:         author,
		AuthorLocation: text(e.hotel.location),

		Recommendations: parseCount(text(e.hotel.recommendations)),
		Comments:        parseCount(text(e.hotel.comments)),
		ImagesCount:     len(images),
		Images:          strings.Join(images, "; "),

		ListPage:  hotel.ListPage,
		ScrapedAt: scrapedAt,
	}
	return rec, nil
}

// stripLabel removes a leading section label such as "Достоинства:"
func stripLabel(s, label string) string {
	if strings.HasPrefix(s, label) {
		return strings.TrimSpace(strings.TrimPrefix(s, label))
	}
	return s
}

// composeText joins the non-empty parts into the labelled full review text
func composeText(title, teaser, plus, minus string) string {
	var parts []string
	if title != "" {
		parts = append(parts, "Заголовок: "+title)
	}
	if teaser != "" {
		parts = append(parts, "Текст: "+teaser)
	}
	if plus != "" {
		parts = append(parts, "Достоинства: "+plus)
	}
	if minus != "" {
		parts = append(parts, "Недостатки: "+minus)
	}
	return strings.Join(parts, "\n\n")
}

// parseCount returns the integer value of an all-digit string, 0 otherwise
func parseCount(s string) int {
	if s == "" {
		return 0
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
