package domain

import "time"

// Core domain models shared by the worker pipeline and its adapters. Rows in
// Postgres map 1:1 onto these; adapters own the SQL.

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further automatic transition applies.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

type ObjectStatus string

const (
	ObjectPending   ObjectStatus = "pending"
	ObjectScanning  ObjectStatus = "scanning"
	ObjectCompleted ObjectStatus = "completed"
	ObjectFailed    ObjectStatus = "failed"
	ObjectSkipped   ObjectStatus = "skipped"
)

func (s ObjectStatus) Terminal() bool {
	return s == ObjectCompleted || s == ObjectFailed || s == ObjectSkipped
}

type FindingType string

const (
	FindingSSN          FindingType = "ssn"
	FindingCreditCard   FindingType = "credit_card"
	FindingAWSAccessKey FindingType = "aws_access_key"
	FindingAWSSecretKey FindingType = "aws_secret_key"
	FindingEmail        FindingType = "email"
	FindingPhoneUS      FindingType = "phone_us"
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Job is a user-requested batch scan of objects under a bucket/prefix.
// Counters are derived from child rows and recomputed on every mutation;
// they are never incremented independently.
type Job struct {
	ID               string
	Name             string
	Bucket           string
	Prefix           string
	Status           JobStatus
	TotalObjects     int
	CompletedObjects int
	FailedObjects    int
	TotalFindings    int
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

// JobObject is one object-scan task and its outcome, child of a Job.
// (JobID, Key) is unique per job.
type JobObject struct {
	ID            int64
	JobID         string
	Key           string
	SizeBytes     int64
	Status        ObjectStatus
	FindingsCount int
	ErrorMessage  string
	Attempts      int
	CreatedAt     time.Time
	ScannedAt     *time.Time
}

// Finding is one deduplicated PII detection event, child of a JobObject.
// ValueHash is the SHA-256 hex digest of the normalized matched value; the
// raw value is never stored. (ObjectID, Type, LineNumber, ColumnStart,
// ValueHash) is the idempotency key that makes re-scans safe.
type Finding struct {
	ID          int64
	ObjectID    int64
	JobID       string
	Type        FindingType
	ValueHash   string
	LineNumber  int
	ColumnStart int
	ColumnEnd   int
	Context     string
	Confidence  Confidence
	DetectedAt  time.Time
}

// ScanTask is the queue message, one per object, enqueued at job creation.
type ScanTask struct {
	JobID    string `json:"job_id"`
	ObjectID int64  `json:"object_id"`
	Bucket   string `json:"s3_bucket"`
	Key      string `json:"s3_key"`
	Attempt  int    `json:"attempt,omitempty"`
}
