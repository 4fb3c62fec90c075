package api

import "time"

// Status is the lifecycle state of a translation task.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether no further transitions can leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the server is allowed to move a task from s
// to next. Terminal states are absorbing; queued and processing may complete,
// fail, or be canceled.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusQueued:
		return next == StatusProcessing || next == StatusCompleted ||
			next == StatusFailed || next == StatusCanceled
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed || next == StatusCanceled
	}
	return false
}

// Priority of a translation task.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Task is one translation job. The backend owns every field; the client only
// ever holds a cached copy.
type Task struct {
	ID                string     `json:"id"`
	OwnerID           string     `json:"ownerId"`
	OwnerEmail        string     `json:"ownerEmail"`
	DocumentName      string     `json:"documentName"`
	SourceLang        string     `json:"sourceLang"`
	TargetLang        string     `json:"targetLang"`
	Engine            string     `json:"engine"`
	Priority          Priority   `json:"priority"`
	Notes             string     `json:"notes,omitempty"`
	Status            Status     `json:"status"`
	Progress          int        `json:"progress"`
	ProgressMessage   string     `json:"progressMessage,omitempty"`
	PageCount         int        `json:"pageCount"`
	ProviderConfigID  string     `json:"providerConfigId,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	InputURL          string     `json:"inputUrl,omitempty"`
	OutputURL         string     `json:"outputUrl,omitempty"`
	MonoOutputURL     string     `json:"monoOutputUrl,omitempty"`
	DualOutputURL     string     `json:"dualOutputUrl,omitempty"`
	GlossaryOutputURL string     `json:"glossaryOutputUrl,omitempty"`
	ZipOutputURL      string     `json:"zipOutputUrl,omitempty"`
	Error             string     `json:"error,omitempty"`
}

// ProviderConfig is an administrator-managed translation backend profile.
// Settings is an opaque blob; the client never interprets it.
type ProviderConfig struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	ProviderType string         `json:"providerType"`
	Description  string         `json:"description,omitempty"`
	IsActive     bool           `json:"isActive"`
	IsDefault    bool           `json:"isDefault"`
	Settings     map[string]any `json:"settings,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// User is an account as the admin endpoints report it.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"isActive"`
	GroupID        string    `json:"groupId,omitempty"`
	DailyPageLimit int       `json:"dailyPageLimit"`
	DailyPageUsed  int       `json:"dailyPageUsed"`
	LastQuotaReset time.Time `json:"lastQuotaReset"`
	CreatedAt      time.Time `json:"createdAt"`
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Quota is the caller's daily page budget. The reset schedule is owned by the
// backend; the client only displays these numbers.
type Quota struct {
	DailyPageLimit int    `json:"dailyPageLimit"`
	DailyPageUsed  int    `json:"dailyPageUsed"`
	Remaining      int    `json:"remaining"`
	LastQuotaReset string `json:"lastQuotaReset"`
}

// Group is a named collection of users sharing provider grants.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// GroupProviderAccess grants a group the use of one provider config. SortOrder
// determines provider preference; lower sorts first.
type GroupProviderAccess struct {
	ID               string    `json:"id"`
	GroupID          string    `json:"groupId"`
	ProviderConfigID string    `json:"providerConfigId"`
	SortOrder        int       `json:"sortOrder"`
	CreatedAt        time.Time `json:"createdAt"`
}

// SystemSettings controls registration behavior.
type SystemSettings struct {
	AllowRegistration    bool     `json:"allowRegistration"`
	AllowedEmailSuffixes []string `json:"allowedEmailSuffixes"`
}

// EmailSettings is the SMTP configuration. The password is write-only: the
// backend never echoes it back.
type EmailSettings struct {
	SMTPHost      string `json:"smtpHost,omitempty"`
	SMTPPort      int    `json:"smtpPort,omitempty"`
	SMTPUsername  string `json:"smtpUsername,omitempty"`
	SMTPPassword  string `json:"smtpPassword,omitempty"`
	SMTPUseTLS    bool   `json:"smtpUseTLS"`
	SMTPFromEmail string `json:"smtpFromEmail,omitempty"`
}

// S3Settings is the object storage configuration. The secret key is write-only.
type S3Settings struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey,omitempty"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	TTLDays   int    `json:"ttlDays"`
}

// PerformanceSettings tunes the backend scheduler.
type PerformanceSettings struct {
	MaxConcurrentTasks   int `json:"maxConcurrentTasks"`
	TranslationThreads   int `json:"translationThreads"`
	QueueMonitorInterval int `json:"queueMonitorInterval"`
}

// PerformanceMetrics is a point-in-time view of backend queue pressure.
type PerformanceMetrics struct {
	ActiveTasks         int                 `json:"activeTasks"`
	QueuedTasks         int                 `json:"queuedTasks"`
	HighPriorityQueue   int                 `json:"highPriorityQueue"`
	NormalPriorityQueue int                 `json:"normalPriorityQueue"`
	LowPriorityQueue    int                 `json:"lowPriorityQueue"`
	CurrentConfig       PerformanceSettings `json:"currentConfig"`
}
