package dataset

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetTypeValid(t *testing.T) {
	assert.True(t, TypeValidation.Valid())
	assert.True(t, TypeLearning.Valid())
	assert.False(t, DatasetType("test").Valid())
	assert.False(t, DatasetType("").Valid())
}

func TestQueryValuesOmitsUnsetFields(t *testing.T) {
	assert.Empty(t, ProfileFilters{}.QueryValues())

	v := ProfileFilters{
		Gender: GenderFemale,
		AgeMin: 20,
		AgeMax: 29,
		MBTI:   "ENFP",
		Search: "kim",
	}.QueryValues()

	assert.Equal(t, "FEMALE", v.Get("gender"))
	assert.Equal(t, "20", v.Get("age_min"))
	assert.Equal(t, "29", v.Get("age_max"))
	assert.Equal(t, "ENFP", v.Get("mbti"))
	assert.Equal(t, "kim", v.Get("search"))
}

func TestFiltersFromQuery(t *testing.T) {
	v := url.Values{}
	v.Set("gender", "MALE")
	v.Set("age_min", "18")
	v.Set("mbti", "ISTJ")

	f, err := FiltersFromQuery(v)
	require.NoError(t, err)
	assert.Equal(t, GenderMale, f.Gender)
	assert.Equal(t, 18, f.AgeMin)
	assert.Zero(t, f.AgeMax)
	assert.Equal(t, "ISTJ", f.MBTI)
}

func TestFiltersFromQueryRejectsBadGender(t *testing.T) {
	v := url.Values{}
	v.Set("gender", "other")

	_, err := FiltersFromQuery(v)
	assert.Error(t, err)
}

func TestFiltersFromQueryRejectsBadAge(t *testing.T) {
	v := url.Values{}
	v.Set("age_min", "twenty")

	_, err := FiltersFromQuery(v)
	assert.Error(t, err)
}

func TestFiltersRoundTrip(t *testing.T) {
	in := ProfileFilters{Gender: GenderMale, AgeMin: 21, AgeMax: 35, Search: "park"}

	out, err := FiltersFromQuery(in.QueryValues())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
