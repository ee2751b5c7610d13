package db

type Benchmark struct {
	ID         string
	GradeLevel string
	Definition string
	Subject    string
	CpalmsUrl  string
}

type Resource struct {
	ID           int64
	BenchmarkID  string
	Title        string
	Url          string
	ResourceType string
	Description  string
	CreatedAt    int64
}

type AccessPoint struct {
	BenchmarkID   string
	AccessPointID string
	Description   string
}

type ScrapeStatus struct {
	BenchmarkID  string
	Status       Status
	AttemptCount int64
	LastAttempt  int64
	ErrorMessage string
}

type StatusCount struct {
	Status Status
	Count  int64
}
