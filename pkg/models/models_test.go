package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewRecord_JSONRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second).UTC()
	rating := 4.5
	stars := 5
	rec := ReviewRecord{
		ReviewID:        "hotel_abc_review_0011",
		HotelID:         "hotel_abc",
		HotelName:       "Grand",
		HotelURL:        "https://example.com/reviews/grand/",
		RatingText:      "4,5",
		RatingNumeric:   &rating,
		RatingStars:     &stars,
		Title:           "Nice stay",
		Date:            "08.10.2019",
		Year:            "2019",
		Before2020:      true,
		Recommendations: 3,
		ListPage:        2,
		ScrapedAt:       now,
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var got ReviewRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rec, got)
}

func TestReviewRecord_NilRatingSerializesAsNull(t *testing.T) {
	data, err := json.Marshal(ReviewRecord{ReviewID: "r1"})
	require.NoError(t, err)

	raw := string(data)
	assert.Contains(t, raw, `"review_rating_numeric":null`)
	assert.Contains(t, raw, `"review_rating_stars":null`)
}

func TestHotelDescriptor_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(HotelDescriptor{ID: "hotel_1", URL: "https://example.com/h/", ReviewCount: 3})
	require.NoError(t, err)

	raw := string(data)
	assert.Contains(t, raw, `"reviews_count":3`)
	assert.Contains(t, raw, `"url":"https://example.com/h/"`)
}
