package models

import "time"

// Crew roles.
const (
	RoleDriver    = "Driver"
	RoleConductor = "Conductor"
)

// Crew statuses.
const (
	CrewAvailable = "Available"
	CrewOnDuty    = "On Duty"
	CrewResting   = "Resting"
)

// Bus statuses.
const (
	BusActive       = "Active"
	BusIdle         = "Idle"
	BusMaintenance  = "Maintenance"
	BusOutOfService = "Out of Service"
)

// Assignment statuses.
const (
	StatusPlanned   = "Planned"
	StatusLive      = "Live"
	StatusCompleted = "Completed"
	StatusCanceled  = "Canceled"
)

// Maintenance window statuses.
const (
	MaintenanceScheduled  = "Scheduled"
	MaintenanceInProgress = "In Progress"
	MaintenanceCompleted  = "Completed"
)

// Duty types and statuses.
const (
	DutyLinked   = "Linked"
	DutyUnlinked = "Unlinked"

	DutyScheduled = "Scheduled"
	DutyCompleted = "Completed"
)

// BusTypes is the closed set of fleet vehicle types; crew qualifications
// reference the same tags.
var BusTypes = []string{"Standard", "Mini", "AC", "EV", "Articulated"}

// MaintenanceWindow blocks a bus for a time range unless completed.
type MaintenanceWindow struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Type      string    `json:"type,omitempty"` // Service, Repair, Inspection
	Status    string    `json:"status"`
}

// Unavailability marks a crew member as off-roster for a time range.
type Unavailability struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Reason    string    `json:"reason,omitempty"`
}

// DutySlot is a named time-of-day window used to partition a day into
// schedulable cells, e.g. {Key: "morning", Start: "06:00", End: "14:00"}.
type DutySlot struct {
	Key   string `json:"key"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Settings is the singleton scheduling policy record. A missing row means
// DefaultSettings.
// Boolean and numeric fields carry no column defaults on purpose: a zero
// value written by the API must stay zero, and defaults are applied in
// DefaultSettings when the row is absent.
type Settings struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	MinRestHours      float64    `json:"minRestHours"`
	MaxShiftHours     float64    `json:"maxShiftHours"`
	MaxWeeklyHours    float64    `json:"maxWeeklyHours"`
	ConductorRequired bool       `json:"conductorRequired"`
	SplitShiftsOK     bool       `gorm:"column:split_shifts_allowed" json:"splitShiftsAllowed"`
	HandoverStopsOnly bool       `json:"handoverStopsOnly"`
	FreezeWindowHours float64    `json:"freezeWindowHours"`
	AllowOverrides    bool       `json:"allowOverrides"`
	DutySlots         []DutySlot `gorm:"serializer:json" json:"dutySlots"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// DefaultSettings returns the policy used when no settings row exists yet.
func DefaultSettings() Settings {
	return Settings{
		MinRestHours:      12,
		MaxShiftHours:     8,
		MaxWeeklyHours:    48,
		ConductorRequired: false,
		SplitShiftsOK:     true,
		HandoverStopsOnly: true,
		FreezeWindowHours: 12,
		AllowOverrides:    true,
		DutySlots: []DutySlot{
			{Key: "morning", Start: "06:00", End: "14:00"},
			{Key: "evening", Start: "14:00", End: "22:00"},
		},
	}
}

// Crew is a driver or conductor.
type Crew struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Name   string `gorm:"not null" json:"name"`
	CrewID string `gorm:"index" json:"crewId"` // public code like DTC-C001
	Role   string `gorm:"not null;index:idx_crew_filter" json:"role"`
	Status string `gorm:"default:Available;index:idx_crew_filter" json:"status"`
	Avatar string `json:"avatar,omitempty"`

	// Empty set means qualified for every bus type.
	Qualifications []string         `gorm:"serializer:json" json:"qualifications"`
	LastDutyEnd    *time.Time       `gorm:"index" json:"lastDutyEnd"`
	Unavailability []Unavailability `gorm:"serializer:json" json:"unavailability"`

	IsArchived bool      `gorm:"default:false;index:idx_crew_filter" json:"isArchived"`
	CreatedBy  string    `json:"createdBy,omitempty"`
	UpdatedBy  string    `json:"updatedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Bus is a fleet vehicle.
type Bus struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	BusNumber string `gorm:"uniqueIndex;not null" json:"busNumber"`
	Capacity  int    `gorm:"not null" json:"capacity"`
	Type      string `gorm:"default:Standard;index:idx_bus_filter" json:"type"`
	Status    string `gorm:"default:Idle;index:idx_bus_filter" json:"status"`
	Depot     string `json:"depot,omitempty"`

	MaintenanceWindows []MaintenanceWindow `gorm:"serializer:json" json:"maintenanceWindows"`

	IsArchived bool      `gorm:"default:false;index:idx_bus_filter" json:"isArchived"`
	CreatedBy  string    `json:"createdBy,omitempty"`
	UpdatedBy  string    `json:"updatedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Route is a scheduled transport line. Geometry and stops are carried for
// the API but ignored by the scheduling core.
type Route struct {
	ID            uint     `gorm:"primaryKey" json:"id"`
	RouteName     string   `gorm:"uniqueIndex;not null" json:"routeName"`
	RouteNumber   string   `gorm:"uniqueIndex;not null" json:"routeNumber"`
	EstimatedTime string   `json:"estimatedTime"`
	Distance      float64  `json:"distance"`
	Stops         []string `gorm:"serializer:json" json:"stops"`
	GeoJSON       string   `gorm:"type:text" json:"geoJson,omitempty"`

	BusTypeRequired string   `json:"busTypeRequired,omitempty"`
	ReliefPoints    []string `gorm:"serializer:json" json:"reliefPoints"`

	Priority int   `gorm:"default:10" json:"priority"`     // lower runs first
	RunDays  []int `gorm:"serializer:json" json:"runDays"` // weekday indices 0-6

	IsArchived bool      `gorm:"default:false" json:"isArchived"`
	CreatedBy  string    `json:"createdBy,omitempty"`
	UpdatedBy  string    `json:"updatedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// DefaultRunDays is Monday through Friday.
var DefaultRunDays = []int{1, 2, 3, 4, 5}

// Assignment pairs one crew member with a bus on a route for a half-open
// time window [StartTime, EndTime). The window is immutable once created;
// undo flips status or deletes the row.
type Assignment struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	CrewID  uint   `gorm:"not null;index:idx_asgn_crew_window" json:"crewId"`
	BusID   uint   `gorm:"not null;index:idx_asgn_bus_window" json:"busId"`
	RouteID uint   `gorm:"not null" json:"routeId"`
	DutyID  *uint  `json:"dutyId,omitempty"`
	Role    string `gorm:"not null" json:"role"`

	StartTime time.Time `gorm:"not null;index:idx_asgn_crew_window;index:idx_asgn_bus_window;index" json:"startTime"`
	EndTime   time.Time `gorm:"not null;index" json:"endTime"`

	Status string `gorm:"default:Planned;index" json:"status"`

	// Non-empty only when the record was created under override.
	// ConflictKinds carries the stable rule categories alongside the
	// display strings so reporting never re-parses message text.
	Conflicts      []string `gorm:"serializer:json" json:"conflicts,omitempty"`
	ConflictKinds  []string `gorm:"serializer:json" json:"conflictKinds,omitempty"`
	OverrideReason string   `json:"overrideReason,omitempty"`

	// Batch provenance, set by day generation and used for undo/reporting.
	BatchID       string `gorm:"index" json:"batchId,omitempty"`
	ScheduledDate string `json:"scheduledDate,omitempty"` // YYYY-MM-DD
	SlotKey       string `json:"slotKey,omitempty"`

	CreatedBy string    `json:"createdBy,omitempty"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Duty is a rostered block of work for one crew member on one bus. Linked
// duties group assignments (Assignment.DutyID points here); completing a
// duty moves the crew member to Resting and records the duty end.
type Duty struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Type   string `gorm:"not null" json:"type"` // Linked or Unlinked
	CrewID uint   `gorm:"not null;index" json:"crewId"`
	BusID  uint   `gorm:"not null" json:"busId"`
	Route  string `gorm:"not null" json:"route"`

	StartTime time.Time `gorm:"not null;index" json:"startTime"`
	EndTime   time.Time `gorm:"not null" json:"endTime"`

	Status string `gorm:"default:Scheduled" json:"status"`
	Notes  string `json:"notes,omitempty"`

	CreatedBy string    `json:"createdBy,omitempty"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MasterUser is an operator account for the admin API.
type MasterUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"default:admin" json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Counter backs sequential public codes such as crew DTC-C###.
type Counter struct {
	Name string `gorm:"primaryKey" json:"name"`
	Seq  int64  `gorm:"not null" json:"seq"`
}
