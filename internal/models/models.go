package models

import (
	"fmt"
	"time"
)

// AssignedAll is the sentinel value for Task.AssignedTo meaning every active
// team member. Any other value is either a user id or a squad id; consumers
// interpret it, the synchronizer stores it opaquely.
const AssignedAll = "ALL"

// DriveItemKind distinguishes folders from files in the drive and wiki trees.
type DriveItemKind string

const (
	KindFolder DriveItemKind = "FOLDER"
	KindFile   DriveItemKind = "FILE"
)

// AppState is the single synchronized document shared by every session.
// Team order is display/priority order; availableRoles preserves insertion
// order; DB maps a month key such as "Março 2025" to that month's bucket.
type AppState struct {
	Team           []User                   `json:"team" bson:"team"`
	AvailableRoles []string                 `json:"availableRoles" bson:"availableRoles"`
	DB             map[string]MonthlyBucket `json:"db" bson:"db"`
}

// MonthlyBucket holds all business data scoped to one month key.
// Buckets are created on first access and never explicitly deleted.
type MonthlyBucket struct {
	Clients      []Client      `json:"clients" bson:"clients"`
	Tasks        []Task        `json:"tasks" bson:"tasks"`
	SalesGoal    SalesGoal     `json:"salesGoal" bson:"salesGoal"`
	ChatMessages []ChatMessage `json:"chatMessages" bson:"chatMessages"`
	Drive        []DriveItem   `json:"drive" bson:"drive"`
	Wiki         []DriveItem   `json:"wiki" bson:"wiki"`
	Squads       []Squad       `json:"squads" bson:"squads"`
}

// User is a roster entry. AuthID links to the auth provider's subject and is
// set once at provisioning, never reassigned. IsApproved=false marks a
// pending-onboarding account that stays stored but is excluded from active
// roster views.
type User struct {
	ID          string  `json:"id" bson:"id"`
	AuthID      string  `json:"authId,omitempty" bson:"authId,omitempty"`
	Name        string  `json:"name" bson:"name"`
	Email       string  `json:"email" bson:"email"`
	Role        string  `json:"role" bson:"role"`
	IsActive    bool    `json:"isActive" bson:"isActive"`
	IsApproved  bool    `json:"isApproved" bson:"isApproved"`
	SalesVolume float64 `json:"salesVolume" bson:"salesVolume"`
}

// Client is a CRM record. AssignedUserIDs may reference removed users; the
// dangling reference is tolerated, not cleaned up.
type Client struct {
	ID                 string   `json:"id" bson:"id"`
	Name               string   `json:"name" bson:"name"`
	Status             string   `json:"status" bson:"status"`
	IsPaused           bool     `json:"isPaused" bson:"isPaused"`
	AssignedUserIDs    []string `json:"assignedUserIds" bson:"assignedUserIds"`
	ContractValue      float64  `json:"contractValue" bson:"contractValue"`
	ServiceType        string   `json:"serviceType" bson:"serviceType"`
	Briefing           string   `json:"briefing" bson:"briefing"`
	AccessLinks        string   `json:"accessLinks" bson:"accessLinks"`
	OperationalHistory string   `json:"operationalHistory" bson:"operationalHistory"`
	PlanItems          []string `json:"planItems,omitempty" bson:"planItems,omitempty"`
}

// Task is a checklist entry. AssignedTo is a user id, AssignedAll, or a squad id.
type Task struct {
	ID         string `json:"id" bson:"id"`
	Title      string `json:"title" bson:"title"`
	Done       bool   `json:"done" bson:"done"`
	AssignedTo string `json:"assignedTo" bson:"assignedTo"`
}

// Squad is a named group with its own message thread, independent from the
// top-level chat.
type Squad struct {
	ID        string        `json:"id" bson:"id"`
	Name      string        `json:"name" bson:"name"`
	MemberIDs []string      `json:"memberIds" bson:"memberIds"`
	Messages  []ChatMessage `json:"messages" bson:"messages"`
}

// ChatMessage is one entry in an append-only chronological thread.
type ChatMessage struct {
	ID         string    `json:"id" bson:"id"`
	AuthorID   string    `json:"authorId" bson:"authorId"`
	AuthorName string    `json:"authorName" bson:"authorName"`
	Text       string    `json:"text" bson:"text"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// DriveItem is a filesystem-like node in a flat list forming an implicit tree
// via ParentID. An empty ParentID means root. Content carries file payloads
// (drive files store embedded JSON, wiki files store free text).
type DriveItem struct {
	ID       string        `json:"id" bson:"id"`
	ParentID string        `json:"parentId,omitempty" bson:"parentId,omitempty"`
	Kind     DriveItemKind `json:"kind" bson:"kind"`
	Name     string        `json:"name" bson:"name"`
	Content  string        `json:"content,omitempty" bson:"content,omitempty"`
}

// SalesGoal tracks the month's targets and running totals. CurrentValue and
// TotalSales only grow under normal operation but are plain mutable fields
// with no server-side enforcement.
type SalesGoal struct {
	Target       float64 `json:"target" bson:"target"`
	SuperTarget  float64 `json:"superTarget" bson:"superTarget"`
	CurrentValue float64 `json:"currentValue" bson:"currentValue"`
	TotalSales   int     `json:"totalSales" bson:"totalSales"`
}

// StateDocument is the persisted row wrapping AppState. Exactly one exists
// per deployment, addressed by a fixed id.
type StateDocument struct {
	ID        string    `json:"id" bson:"_id"`
	Data      AppState  `json:"data" bson:"data"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// DefaultRoles is the role list seeded into a fresh deployment. Operators
// register additional roles at runtime; this is a starting vocabulary, not a
// closed set.
var DefaultRoles = []string{
	"CEO",
	"Gestor de Projetos",
	"Gestor de Tráfego",
	"Copywriter",
	"Designer",
	"Editor de Vídeo",
}

// DefaultRole is assigned to self-registered accounts.
const DefaultRole = "Gestor de Projetos"

var ptBRMonths = [...]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// MonthKey formats a time as the pt-BR month label used as the DB map key,
// e.g. "Março 2025".
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%s %d", ptBRMonths[t.Month()-1], t.Year())
}

// NewMonthlyBucket returns an empty bucket with zeroed goal and initialized
// (non-nil) lists so the serialized form stays stable.
func NewMonthlyBucket() MonthlyBucket {
	return MonthlyBucket{
		Clients:      []Client{},
		Tasks:        []Task{},
		SalesGoal:    SalesGoal{},
		ChatMessages: []ChatMessage{},
		Drive:        []DriveItem{},
		Wiki:         []DriveItem{},
		Squads:       []Squad{},
	}
}

// SeedState returns the in-memory defaults used when no remote document
// exists yet: one month keyed to now, holding a single example client.
func SeedState(now time.Time) AppState {
	bucket := NewMonthlyBucket()
	bucket.Clients = append(bucket.Clients, Client{
		ID:              "client-exemplo",
		Name:            "Cliente Exemplo",
		Status:          "Saudável",
		AssignedUserIDs: []string{},
		ServiceType:     "Gestão de Tráfego",
		Briefing:        "Cliente de demonstração criado na primeira execução.",
	})
	return AppState{
		Team:           []User{},
		AvailableRoles: append([]string{}, DefaultRoles...),
		DB: map[string]MonthlyBucket{
			MonthKey(now): bucket,
		},
	}
}
