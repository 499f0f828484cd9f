// Package models defines the rows persisted in the local store and the
// constants shared by the sync subsystem.
package models

import "time"

// JobStatus is the lifecycle state of a sync job.
type JobStatus int

const (
	JobStatusPending    JobStatus = 1
	JobStatusOnProgress JobStatus = 2
	JobStatusSuccess    JobStatus = 3
	JobStatusFailed     JobStatus = 4
)

func (s JobStatus) String() string {
	switch s {
	case JobStatusPending:
		return "PENDING"
	case JobStatusOnProgress:
		return "ON_PROGRESS"
	case JobStatusSuccess:
		return "SUCCESS"
	case JobStatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the status ends a job's lifecycle. At most one
// non-terminal job may exist per (user, type).
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess
}

// JobType discriminates sync jobs. One job per type per user.
type JobType string

const (
	// JobTypeFormSubmission pushes submitted datapoints to the server.
	JobTypeFormSubmission JobType = "sync-form-submission"
	// JobTypeFormDatapoints pulls monitoring datapoints from the server.
	JobTypeFormDatapoints JobType = "sync-form-datapoints"
)

// User is a locally enrolled data collector. Exactly one user is active at
// a time whenever any exist.
type User struct {
	ID           int64
	Name         string
	Password     string // argon2id passcode hash
	Active       bool
	Token        string // opaque sync credential issued by the server
	LastSyncedAt *time.Time
}

// Config is the singleton row of device settings (id fixed to
// common.ConfigRowID). SyncInterval is in seconds.
type Config struct {
	ID                 int64
	AppVersion         string
	AuthenticationCode string
	ServerURL          string
	SyncInterval       float64
	SyncWifiOnly       bool
	Lang               string
	GPSThreshold       *int64
	GPSAccuracyLevel   *int64
	GeoLocationTimeout *int64
}

// Interval converts the stored sync interval into a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.SyncInterval * float64(time.Second))
}

// Form is a fetched survey definition. Immutable once stored except for the
// Latest flag, which flips when a newer version supersedes it.
type Form struct {
	ID        int64
	ParentID  *int64 // registration form for monitoring/update forms
	UserID    int64
	FormID    int64 // remote identifier, distinct from the local surrogate key
	Version   string
	Latest    bool
	Name      string
	JSON      string // serialized form definition
	CreatedAt time.Time
}

// DataPoint is one survey response instance. Submitted+nil SyncedAt is the
// definition of "pending sync". SyncedAt is never set before SubmittedAt.
type DataPoint struct {
	ID               int64
	FormID           int64 // local forms.id
	UserID           int64
	AdministrationID *int64
	Submitter        string
	Name             string
	Geo              string
	Submitted        bool
	Duration         float64 // minutes, accumulated across edit sessions
	CreatedAt        time.Time
	SubmittedAt      *time.Time
	SyncedAt         *time.Time
	Answers          AnswerMap
	UUID             string // idempotency key across the client/server boundary
	Repeats          map[string][]int
}

// PendingSync reports whether the datapoint still needs to reach the server.
func (d *DataPoint) PendingSync() bool {
	return d.Submitted && d.SyncedAt == nil
}

// Job is a unit of pending synchronization work scoped to a user and type.
// Only the job queue engine mutates Status and Attempt.
type Job struct {
	ID        int64
	UserID    int64
	Type      JobType
	Status    JobStatus
	Attempt   int
	Info      string // last error or correlation uuid
	CreatedAt time.Time
}

// Session is one row of the append-only authentication log. The last row is
// the current session.
type Session struct {
	ID       int64
	Token    string
	Passcode string
}

// Monitoring is a server-side datapoint pulled for follow-up submissions,
// correlated with local rows by uuid.
type Monitoring struct {
	ID               int64
	FormID           int64 // remote form id
	UUID             string
	Name             string
	AdministrationID *int64
	Answers          AnswerMap
	SyncedAt         *time.Time
}

// Certification mirrors Monitoring for certification workflows, plus a
// local certified flag.
type Certification struct {
	ID               int64
	FormID           int64
	UUID             string
	Name             string
	AdministrationID *int64
	Answers          AnswerMap
	SyncedAt         *time.Time
	IsCertified      bool
}
