package server

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nadmax/profiledash/internal/backend"
	"github.com/nadmax/profiledash/internal/dataset"
	"github.com/nadmax/profiledash/internal/export"
	"github.com/nadmax/profiledash/internal/task"
)

// Canned payloads served when the backend is unreachable. The dashboard
// stays browsable on mock data instead of erroring out; responses carry
// plausible shapes, not real corpus contents.

func fallbackExtraction() *backend.StartExtractionResponse {
	return &backend.StartExtractionResponse{
		TaskID:  "extract-" + uuid.New().String(),
		Message: "Validation extraction started (fallback response)",
	}
}

func fallbackAugmentation(req backend.StartAugmentationRequest) *backend.StartAugmentationResponse {
	return &backend.StartAugmentationResponse{
		TaskID:      "augment-" + uuid.New().String(),
		Message:     "Dataset augmentation started (fallback response)",
		TargetCount: req.TargetCount,
	}
}

func fallbackStatus(taskID string) *task.Status {
	return &task.Status{
		TaskID:      taskID,
		Status:      task.StatusCompleted,
		Progress:    1,
		CurrentStep: "Task completed (fallback response)",
		TotalSteps:  1,
	}
}

func fallbackLogs(taskID string, q task.LogQuery) *task.LogsPage {
	q = q.WithDefaults()
	const totalLogs = 500

	level := q.Level
	if level == "" {
		level = task.LevelInfo
	}

	now := time.Now()
	logs := make([]task.LogEntry, 0, q.PageSize)
	for i := 0; i < q.PageSize; i++ {
		message := fmt.Sprintf("Task %s - processing step %d", taskID, i+1)
		if q.Search != "" {
			message = fmt.Sprintf("Task %s - processing step matching %q", taskID, q.Search)
		}
		logs = append(logs, task.LogEntry{
			ID:        fmt.Sprintf("log-%s-%d", taskID, (q.Page-1)*q.PageSize+i+1),
			TaskID:    taskID,
			Timestamp: now.Add(-time.Duration(i) * time.Second).Format(time.RFC3339),
			Level:     level,
			Message:   message,
		})
	}

	return &task.LogsPage{
		TaskID:     taskID,
		Logs:       logs,
		TotalLogs:  totalLogs,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: (totalLogs + q.PageSize - 1) / q.PageSize,
	}
}

func fallbackDatasets() []dataset.DatasetInfo {
	now := time.Now().Format(time.RFC3339)

	return []dataset.DatasetInfo{
		{
			DatasetType: dataset.TypeValidation,
			Stats: dataset.DatasetStats{
				DatasetType:        dataset.TypeValidation,
				TotalProfiles:      282,
				TotalImages:        846,
				GenderDistribution: map[string]int{"MALE": 141, "FEMALE": 141},
				AgeDistribution:    map[string]int{"23-25": 100, "26-28": 120, "29-31": 62},
				MBTIDistribution:   map[string]int{"INTJ": 40, "ENFP": 52, "ISTP": 35},
				UpdatedAt:          now,
			},
			StoragePath:       "/data/validation",
			ProfilesAvailable: true,
		},
		{
			DatasetType: dataset.TypeLearning,
			Stats: dataset.DatasetStats{
				DatasetType:        dataset.TypeLearning,
				TotalProfiles:      3000,
				TotalImages:        9000,
				GenderDistribution: map[string]int{"MALE": 1500, "FEMALE": 1500},
				AgeDistribution:    map[string]int{"23-25": 1000, "26-28": 1200, "29-31": 800},
				MBTIDistribution:   map[string]int{"INTJ": 420, "ENFP": 510, "ISTP": 380},
				UpdatedAt:          now,
			},
			StoragePath:       "/data/learning",
			ProfilesAvailable: true,
		},
	}
}

var fallbackNames = []string{"John Doe", "Jane Smith", "Alex Kim", "Morgan Lee", "Casey Park"}
var fallbackMBTIs = []string{"INTJ", "ENFP", "ISTP", "ISFJ", "ENTP"}

func fallbackProfiles(datasetType dataset.DatasetType, page, pageSize int) *dataset.ProfileListResponse {
	const total = 250

	items := make([]dataset.ProfileSummary, 0, pageSize)
	for i := 0; i < pageSize; i++ {
		n := (page-1)*pageSize + i + 1
		if n > total {
			break
		}
		gender := dataset.GenderMale
		if n%2 == 0 {
			gender = dataset.GenderFemale
		}
		items = append(items, dataset.ProfileSummary{
			ID:          fmt.Sprintf("%s-%03d", datasetType, n),
			UserID:      fmt.Sprintf("user-%03d", n),
			DatasetType: datasetType,
			Age:         23 + n%9,
			Gender:      gender,
			Name:        fallbackNames[n%len(fallbackNames)],
			MBTI:        fallbackMBTIs[n%len(fallbackMBTIs)],
			ImageCount:  3,
		})
	}

	totalPages := (total + pageSize - 1) / pageSize
	return &dataset.ProfileListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

func fallbackProfile(datasetType dataset.DatasetType, profileID string) *dataset.ProfileData {
	return &dataset.ProfileData{
		ID:           profileID,
		UserID:       "user-" + profileID,
		DatasetType:  datasetType,
		Age:          26,
		Gender:       dataset.GenderMale,
		Name:         fallbackNames[0],
		MBTI:         fallbackMBTIs[0],
		Introduction: "Sample profile (fallback response)",
		UniversityInfo: &dataset.UniversityInfo{
			UniversityName: "Seoul National University",
			DepartmentName: "Computer Science",
		},
		ProfileImages: []dataset.ImageInfo{
			{ID: "1", S3URL: fmt.Sprintf("https://s3.example/%s/img1.jpg", profileID), IsMain: true, Order: 0},
			{ID: "2", S3URL: fmt.Sprintf("https://s3.example/%s/img2.jpg", profileID), Order: 1},
		},
		Preferences: dataset.PreferenceInfo{
			GoodMBTI: "INFJ",
			BadMBTI:  "ESTP",
			SelfPreferences: []dataset.PreferenceOption{
				{Category: "lifestyle", Value: "morning", DisplayName: "Morning person"},
			},
			PartnerPreferences: []dataset.PreferenceOption{},
		},
	}
}

// fallbackCSV renders the mock profile set through the real CSV contract so
// a fallback download still honors the fixed column order.
func fallbackCSV(datasetType dataset.DatasetType) ([]byte, error) {
	list := fallbackProfiles(datasetType, 1, 5)

	profiles := make([]dataset.ProfileData, 0, len(list.Items))
	for _, item := range list.Items {
		p := fallbackProfile(datasetType, item.ID)
		p.Age = item.Age
		p.Gender = item.Gender
		p.Name = item.Name
		p.MBTI = item.MBTI
		profiles = append(profiles, *p)
	}

	return export.BuildCSV(profiles)
}
