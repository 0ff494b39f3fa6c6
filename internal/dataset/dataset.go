// Package dataset defines the profile corpus model shared by the proxy
// layer and the CSV exporter.
package dataset

import (
	"fmt"
	"net/url"
	"strconv"
)

type (
	DatasetType string
	Gender      string
)

const (
	TypeValidation DatasetType = "validation"
	TypeLearning   DatasetType = "learning"
)

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

func (d DatasetType) Valid() bool {
	return d == TypeValidation || d == TypeLearning
}

type UniversityInfo struct {
	UniversityName string `json:"university_name"`
	DepartmentName string `json:"department_name"`
	Grade          string `json:"grade,omitempty"`
}

type ImageInfo struct {
	ID        string `json:"id"`
	S3URL     string `json:"s3_url"`
	StaticURL string `json:"static_url,omitempty"`
	IsMain    bool   `json:"is_main"`
	Order     int    `json:"order"`
}

type PreferenceOption struct {
	Category    string `json:"category"`
	Value       string `json:"value"`
	DisplayName string `json:"display_name"`
}

type PreferenceInfo struct {
	DistanceMax        string             `json:"distance_max,omitempty"`
	GoodMBTI           string             `json:"good_mbti,omitempty"`
	BadMBTI            string             `json:"bad_mbti,omitempty"`
	SelfPreferences    []PreferenceOption `json:"self_preferences"`
	PartnerPreferences []PreferenceOption `json:"partner_preferences"`
}

type MatchInfo struct {
	ConnectionID     string  `json:"connection_id"`
	PartnerUserID    string  `json:"partner_user_id"`
	PartnerProfileID string  `json:"partner_profile_id"`
	Score            float64 `json:"score"`
	MatchDate        string  `json:"match_date"`
	MutualLike       bool    `json:"mutual_like"`
}

type ProfileSummary struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	DatasetType  DatasetType `json:"dataset_type"`
	Age          int         `json:"age"`
	Gender       Gender      `json:"gender"`
	Name         string      `json:"name"`
	MBTI         string      `json:"mbti,omitempty"`
	ImageCount   int         `json:"image_count"`
	HasMatchData bool        `json:"has_match_data"`
	CreatedAt    string      `json:"created_at,omitempty"`
}

type ProfileData struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	DatasetType    DatasetType     `json:"dataset_type"`
	Age            int             `json:"age"`
	Gender         Gender          `json:"gender"`
	Name           string          `json:"name"`
	Title          string          `json:"title,omitempty"`
	MBTI           string          `json:"mbti,omitempty"`
	Introduction   string          `json:"introduction,omitempty"`
	UniversityInfo *UniversityInfo `json:"university_info,omitempty"`
	ProfileImages  []ImageInfo     `json:"profile_images"`
	Preferences    PreferenceInfo  `json:"preferences"`
	MatchData      *MatchInfo      `json:"match_data,omitempty"`
	CreatedAt      string          `json:"created_at,omitempty"`
}

type DatasetStats struct {
	DatasetType        DatasetType    `json:"dataset_type"`
	TotalProfiles      int            `json:"total_profiles"`
	TotalImages        int            `json:"total_images"`
	GenderDistribution map[string]int `json:"gender_distribution"`
	AgeDistribution    map[string]int `json:"age_distribution"`
	MBTIDistribution   map[string]int `json:"mbti_distribution"`
	CreatedAt          string         `json:"created_at,omitempty"`
	UpdatedAt          string         `json:"updated_at,omitempty"`
}

type DatasetInfo struct {
	DatasetType       DatasetType  `json:"dataset_type"`
	Stats             DatasetStats `json:"stats"`
	StoragePath       string       `json:"storage_path"`
	ProfilesAvailable bool         `json:"profiles_available"`
}

type ProfileListResponse struct {
	Items      []ProfileSummary `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
	HasNext    bool             `json:"has_next"`
	HasPrev    bool             `json:"has_prev"`
}

// ProfileFilters narrows a profile listing or an export.
type ProfileFilters struct {
	Gender Gender `json:"gender,omitempty"`
	AgeMin int    `json:"age_min,omitempty"`
	AgeMax int    `json:"age_max,omitempty"`
	MBTI   string `json:"mbti,omitempty"`
	Search string `json:"search,omitempty"`
}

// QueryValues renders the filters as backend query parameters, omitting
// unset fields.
func (f ProfileFilters) QueryValues() url.Values {
	v := url.Values{}
	if f.Gender != "" {
		v.Set("gender", string(f.Gender))
	}
	if f.AgeMin > 0 {
		v.Set("age_min", strconv.Itoa(f.AgeMin))
	}
	if f.AgeMax > 0 {
		v.Set("age_max", strconv.Itoa(f.AgeMax))
	}
	if f.MBTI != "" {
		v.Set("mbti", f.MBTI)
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	return v
}

// FiltersFromQuery parses listing filters from request query parameters.
func FiltersFromQuery(v url.Values) (ProfileFilters, error) {
	f := ProfileFilters{
		Gender: Gender(v.Get("gender")),
		MBTI:   v.Get("mbti"),
		Search: v.Get("search"),
	}
	if f.Gender != "" && f.Gender != GenderMale && f.Gender != GenderFemale {
		return f, fmt.Errorf("invalid gender %q", f.Gender)
	}

	for name, dst := range map[string]*int{"age_min": &f.AgeMin, "age_max": &f.AgeMax} {
		raw := v.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("invalid %s %q", name, raw)
		}
		*dst = n
	}

	return f, nil
}
