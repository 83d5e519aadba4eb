package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Organization struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"unique;size:100;not null"`

	Teams []Team `gorm:"constraint:OnDelete:CASCADE"`
}

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Username string `gorm:"unique;size:50;not null"`
	Email    string `gorm:"unique;size:254;not null"`
	Password []byte

	IsAdmin bool `gorm:"not null;default:false"`

	OrganizationId *uuid.UUID    `gorm:"type:uuid"`
	Organization   *Organization `gorm:"constraint:OnDelete:SET NULL"`

	Memberships []TeamMembership `gorm:"foreignKey:UserId;constraint:OnDelete:CASCADE"`
}

type Team struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"size:100;not null;uniqueIndex:idx_team_org_name"`

	OrganizationId uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_team_org_name"`
	Organization   *Organization `gorm:"constraint:OnDelete:CASCADE"`
}

type TeamMembership struct {
	UserId uuid.UUID `gorm:"type:uuid;primaryKey"`
	TeamId uuid.UUID `gorm:"type:uuid;primaryKey"`
	IsLead bool      `gorm:"not null;default:false"`

	User *User `gorm:"constraint:OnDelete:CASCADE"`
	Team *Team `gorm:"constraint:OnDelete:CASCADE"`
}

// Sibling folders cannot share a name: (team, parent, name) is unique.
type Folder struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"size:100;not null;uniqueIndex:idx_folder_sibling_name"`
	Description string

	ParentFolderId *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_folder_sibling_name"`
	ParentFolder   *Folder

	TeamId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_folder_sibling_name"`
	Team   *Team     `gorm:"constraint:OnDelete:CASCADE"`
}

// Status is an open-ended, data-driven workflow label. Any status to any
// status is a legal document transition; the audit trail is the only record
// of the path taken.
type Status struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"unique;size:100;not null"`
}

type Scenario struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"unique;size:100;not null"`
	Description string
}

type Document struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Title   string `gorm:"size:200;not null"`
	Content string `gorm:"not null"`
	Url     string `gorm:"size:2048"`

	FolderId uuid.UUID `gorm:"type:uuid;not null;index"`
	Folder   *Folder

	AuthorId uuid.UUID `gorm:"type:uuid;not null"`
	Author   *User     `gorm:"foreignKey:AuthorId"`

	StatusId uuid.UUID `gorm:"type:uuid;not null"`
	Status   *Status

	ScenarioId uuid.UUID `gorm:"type:uuid;not null"`
	Scenario   *Scenario

	Activities []Activity `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Tag struct {
	Id    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name  string    `gorm:"unique;size:100;not null"`
	Color string    `gorm:"size:50;not null"`
}

// TaggableKind enumerates the entity types that can carry tags. The kind is
// stored in the tagging row alongside the target id.
type TaggableKind string

const (
	TaggableDocument     TaggableKind = "document"
	TaggableFolder       TaggableKind = "folder"
	TaggableOrganization TaggableKind = "organization"
	TaggableTeam         TaggableKind = "team"
	TaggableUser         TaggableKind = "user"
	TaggableScenario     TaggableKind = "scenario"
)

// taggableModels maps each kind to a fresh instance of its model, used to
// verify that a tagging target actually exists before creating the join row.
var taggableModels = map[TaggableKind]func() interface{}{
	TaggableDocument:     func() interface{} { return &Document{} },
	TaggableFolder:       func() interface{} { return &Folder{} },
	TaggableOrganization: func() interface{} { return &Organization{} },
	TaggableTeam:         func() interface{} { return &Team{} },
	TaggableUser:         func() interface{} { return &User{} },
	TaggableScenario:     func() interface{} { return &Scenario{} },
}

func TaggableModel(kind TaggableKind) (interface{}, error) {
	newModel, ok := taggableModels[kind]
	if !ok {
		return nil, fmt.Errorf("invalid taggable kind '%v'", kind)
	}
	return newModel(), nil
}

// A given (tag, kind, target) triple appears at most once.
type Tagging struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	TagId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_tagging_unique"`
	Tag   *Tag      `gorm:"constraint:OnDelete:CASCADE"`

	TaggableKind TaggableKind `gorm:"size:50;not null;uniqueIndex:idx_tagging_unique"`
	TaggableId   uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_tagging_unique"`

	CreatedAt time.Time
}

const (
	ActionCreated      = "created"
	ActionUpdated      = "updated"
	ActionDeleted      = "deleted"
	ActionStatusChange = "status_change"
	ActionTagAdded     = "tag_added"
	ActionTagRemoved   = "tag_removed"

	// Legacy action names, still accepted when reading trails imported from
	// older deployments.
	ActionTagged   = "tagged"
	ActionUntagged = "untagged"
)

var validActions = map[string]struct{}{
	ActionCreated: {}, ActionUpdated: {}, ActionDeleted: {},
	ActionStatusChange: {}, ActionTagAdded: {}, ActionTagRemoved: {},
	ActionTagged: {}, ActionUntagged: {},
}

func CheckValidAction(action string) error {
	if _, ok := validActions[action]; !ok {
		return fmt.Errorf("invalid activity action '%v'", action)
	}
	return nil
}

// Activity is one immutable audit record describing a tracked mutation to a
// document. Rows are only ever created, never updated, and are deleted only
// when the parent document is destroyed. The actor reference is nullable so
// the record outlives the acting user's account.
type Activity struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	DocumentId uuid.UUID `gorm:"type:uuid;not null;index"`
	Document   *Document `gorm:"constraint:OnDelete:CASCADE"`

	UserId *uuid.UUID `gorm:"type:uuid"`
	User   *User      `gorm:"constraint:OnDelete:SET NULL"`

	Action string `gorm:"size:50;not null"`

	OldStatusId *uuid.UUID `gorm:"type:uuid"`
	OldStatus   *Status    `gorm:"foreignKey:OldStatusId"`

	NewStatusId *uuid.UUID `gorm:"type:uuid"`
	NewStatus   *Status    `gorm:"foreignKey:NewStatusId"`

	Notes string

	CreatedAt time.Time
}

// AllModels is the set of tables passed to AutoMigrate by the server binary
// and the test harness.
func AllModels() []interface{} {
	return []interface{}{
		&Organization{}, &User{}, &Team{}, &TeamMembership{},
		&Folder{}, &Status{}, &Scenario{}, &Document{},
		&Tag{}, &Tagging{}, &Activity{},
	}
}
