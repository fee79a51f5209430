package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/omegaop/backoffice/internal/models"
	"github.com/omegaop/backoffice/internal/roles"
)

// Intent operations. Each one is a copy-on-write replacement of the relevant
// list or record: reference sharing with previously returned snapshots is
// never broken by in-place mutation.

var (
	// ErrNotInRoster is returned when an operation targets an unknown user.
	ErrNotInRoster = errors.New("user not in roster")
	// ErrClientNotFound is returned when an operation targets an unknown client.
	ErrClientNotFound = errors.New("client not found")
	// ErrSquadNotFound is returned when an operation targets an unknown squad.
	ErrSquadNotFound = errors.New("squad not found")
	// ErrItemNotFound is returned when a drive/wiki node does not exist.
	ErrItemNotFound = errors.New("drive item not found")
)

// Section selects which tree of a monthly bucket a drive operation targets.
type Section string

const (
	SectionDrive Section = "drive"
	SectionWiki  Section = "wiki"
)

// ClientFolder carries the free-text operational folder fields of a client.
type ClientFolder struct {
	Briefing           string `json:"briefing"`
	AccessLinks        string `json:"accessLinks"`
	OperationalHistory string `json:"operationalHistory"`
}

// withBucket rewrites one month bucket through f, creating it with defaults
// on first access. The DB map itself is copied (copy-on-write).
func withBucket(st *models.AppState, key string, f func(models.MonthlyBucket) models.MonthlyBucket) {
	db := make(map[string]models.MonthlyBucket, len(st.DB)+1)
	for k, v := range st.DB {
		db[k] = v
	}
	bucket, ok := db[key]
	if !ok {
		bucket = models.NewMonthlyBucket()
	}
	db[key] = f(bucket)
	st.DB = db
}

// EnsureMonth creates the bucket for a month key if it does not exist yet.
func (s *Synchronizer) EnsureMonth(key string) {
	s.apply(func(st *models.AppState) {
		withBucket(st, key, func(b models.MonthlyBucket) models.MonthlyBucket { return b })
	})
}

// ---------------------------------------------------------------------------
// Clients
// ---------------------------------------------------------------------------

// AddClient appends a CRM record to the month, generating an id when absent.
func (s *Synchronizer) AddClient(month string, client models.Client) models.Client {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	if client.AssignedUserIDs == nil {
		client.AssignedUserIDs = []string{}
	}
	s.apply(func(st *models.AppState) {
		withBucket(st, month, func(b models.MonthlyBucket) models.MonthlyBucket {
			b.Clients = append(append([]models.Client{}, b.Clients...), client)
			return b
		})
	})
	return client
}

// rewriteClient replaces one client record through f.
func (s *Synchronizer) rewriteClient(month, clientID string, f func(models.Client) models.Client) error {
	found := false
	s.apply(func(st *models.AppState) {
		withBucket(st, month, func(b models.MonthlyBucket) models.MonthlyBucket {
			next := make([]models.Client, len(b.Clients))
			for i, c := range b.Clients {
				if c.ID == clientID {
					c = f(c)
					found = true
				}
				next[i] = c
			}
			b.Clients = next
			return b
		})
	})
	if !found {
		return ErrClientNotFound
	}
	return nil
}

// UpdateClient replaces the stored record with the given one.
func (s *Synchronizer) UpdateClient(month string, client models.Client) error {
	return s.rewriteClient(month, client.ID, func(models.Client) models.Client { return client })
}

// RemoveClient deletes a client record.
func (s *Synchronizer) RemoveClient(month, clientID string) {
	s.apply(func(st *models.AppState) {
		withBucket(st, month, func(b models.MonthlyBucket) models.MonthlyBucket {
			next := make([]models.Client, 0, len(b.Clients))
			for _, c := range b.Clients {
				if c.ID != clientID {
					next = append(next, c)
				}
			}
			b.Clients = next
			return b
		})
	})
}

// AssignUsers replaces a client's assignment list. Ids are not validated
// against the roster; dangling references are tolerated.
func (s *Synchronizer) AssignUsers(month, clientID string, userIDs []string) error {
	assigned := append([]string{}, userIDs...)
	return s.rewriteClient(month, clientID, func(c models.Client) models.Client {
		c.AssignedUserIDs = assigned
		return c
	})
}

// SetClientPaused toggles the pause flag.
func (s *Synchronizer) SetClientPaused(month, clientID string, paused bool) error {
	return s.rewriteClient(month, clientID, func(c models.Client) models.Client {
		c.IsPaused = paused
		return c
	})
}

// UpdateClientFolder replaces the free-text operational folder fields.
func (s *Synchronizer) UpdateClientFolder(month, clientID string, folder ClientFolder) error {
	return s.rewriteClient(month, clientID, func(c models.Client) models.Client {
		c.Briefing = folder.Briefing
		c.AccessLinks = folder.AccessLinks
		c.OperationalHistory = folder.OperationalHistory
		return c
	})
}

// SetPlanItems replaces a client's checklist.
func (s *Synchronizer) SetPlanItems(month, clientID string, items []string) error {
	plan := append([]string{}, items...)
	return s.rewriteClient(month, clientID, func(c models.Client) models.Client {
		c.PlanItems = plan
		return c
	})
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

// AddTask appends a checklist entry. assignedTo is stored opaquely: a user
// id, models.AssignedAll, or a squad id.
func (s *Synchronizer) AddTask(month, title, assignedTo string) models.Task {
	task := models.Task{ID: uuid.NewString(), Title: title, AssignedTo: assignedTo}
	s.apply(func(st *models.AppState) {
		withBucket(st, month, func(b models.MonthlyBucket) models.MonthlyBucket {
			b.Tasks = append(append([]models.Task{}, b.Tasks...), task)
			return b
		})
	})
	return task
}

// ToggleTask flips the done flag.
func (s *Synchronizer) ToggleTask(month, taskID string) {
	s.apply(func(st *models.AppState) {
		withBucket(st, month, func(b models.MonthlyBucket) models.MonthlyBucket {
			next := make([]models.Task, len(b.Tasks))
			for i, t := range b.Tasks {
				if t.ID == taskID {
					t.Done = !t.Done
				}
				next[i] = t
			}
			b.Tasks = next
			return b
		})
	})
}

// RemoveTask deletes a checklist entry.
func (s *Synchronizer) RemoveTask(month, taskID string) {
	s.apply(func(st *models.AppState) {
		withBucket(st, month, func(b models.MonthlyBucket) models.MonthlyBucket {
			next := make([]models.Task, 0, len(b.Tasks))
			for _, t := range b.Tasks {
				if t.ID != taskID {
					next = append(next, t)
				}
			}
			b.Tasks = next
			return b
		})
	})
}

// ---------------------------------------------------------------------------
// Sales
// ---------------------------------------------------------------------------

// UpdateSalesGoal sets the month's targets.
func (s *Synchronizer) UpdateSalesGoal(month string, target, superTarget float64) {
	s.apply(func(st *models.AppState) {
		withBucket(st, month, func(b models.MonthlyBucket) models.MonthlyBucket {
			b.SalesGoal.Target = target
			b.SalesGoal.SuperTarget = superTarget
			return b
		})
	})
}

// RegisterSale records a closed deal in a single immediate save: the
// seller's cumulative volume grows by value, the month's goal counters
// advance, and a new client record is appended.
func (s *Synchronizer) RegisterSale(ctx context.Context, month, clientName string, value float64, sellerID, serviceType string) (models.Client, error) {
	client := models.Client{
		ID:              uuid.NewString(),
		Name:            clientName,
		Status:          "Saudável",
		AssignedUserIDs: []string{sellerID},
		ContractValue:   value,
		ServiceType:     serviceType,
	}
	err := s.applyNow(ctx, func(st *models.AppState) {
		team := make([]models.User, len(st.Team))
		for i, u := range st.Team {
			if u.ID == sellerID {
				u.SalesVolume += value
			}
			team[i] = u
		}
		st.Team = team

		withBucket(st, month, func(b models.MonthlyBucket) models.MonthlyBucket {
			b.SalesGoal.CurrentValue += value
			b.SalesGoal.TotalSales++
			b.Clients = append(append([]models.Client{}, b.Clients...), client)
			return b
		})
	})
	return client, err
}

// ---------------------------------------------------------------------------
// Chat and squads
// ---------------------------------------------------------------------------

// messageTime stamps a new message. MongoDB holds datetimes at millisecond
// precision, so the timestamp is truncated up front: the change-stream echo
// of the write must serialize to the same bytes as the snapshot marker.
func messageTime() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// PostChatMessage appends to the month's top-level thread. The author name
// is resolved from the roster at post time.
func (s *Synchronizer) PostChatMessage(month, authorID, text string) models.ChatMessage {
	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: messageTime(),
	}
	s.apply(func(st *models.AppState) {
		msg.AuthorName = rosterName(st.Team, authorID)
		withBucket(st, month, func(b models.MonthlyBucket) models.MonthlyBucket {
			b.ChatMessages = append(append([]models.ChatMessage{}, b.ChatMessages...), msg)
			return b
		})
	})
	return msg
}

// CreateSquad adds a named group to the month.
func (s *Synchronizer) CreateSquad(month, name string, memberIDs []string) models.Squad {
	squad := models.Squad{
		ID:        uuid.NewString(),
		Name:      name,
		MemberIDs: append([]string{}, memberIDs...),
		Messages:  []models.ChatMessage{},
	}
	s.apply(func(st *models.AppState) {
		withBucket(st, month, func(b models.MonthlyBucket) models.MonthlyBucket {
			b.Squads = append(append([]models.Squad{}, b.Squads...), squad)
			return b
		})
	})
	return squad
}

// rewriteSquad replaces one squad through f.
func (s *Synchronizer) rewriteSquad(month, squadID string, f func(models.Squad) models.Squad) error {
	found := false
	s.apply(func(st *models.AppState) {
		withBucket(st, month, func(b models.MonthlyBucket) models.MonthlyBucket {
			next := make([]models.Squad, len(b.Squads))
			for i, sq := range b.Squads {
				if sq.ID == squadID {
					sq = f(sq)
					found = true
				}
				next[i] = sq
			}
			b.Squads = next
			return b
		})
	})
	if !found {
		return ErrSquadNotFound
	}
	return nil
}

// SetSquadMembers replaces a squad's member set.
func (s *Synchronizer) SetSquadMembers(month, squadID string, memberIDs []string) error {
	members := append([]string{}, memberIDs...)
	return s.rewriteSquad(month, squadID, func(sq models.Squad) models.Squad {
		sq.MemberIDs = members
		return sq
	})
}

// PostSquadMessage appends to a squad's own thread.
func (s *Synchronizer) PostSquadMessage(month, squadID, authorID, text string) (models.ChatMessage, error) {
	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: messageTime(),
	}
	s.mu.Lock()
	msg.AuthorName = rosterName(s.state.Team, authorID)
	s.mu.Unlock()

	err := s.rewriteSquad(month, squadID, func(sq models.Squad) models.Squad {
		sq.Messages = append(append([]models.ChatMessage{}, sq.Messages...), msg)
		return sq
	})
	return msg, err
}

// ---------------------------------------------------------------------------
// Drive and wiki
// ---------------------------------------------------------------------------

func sectionItems(b models.MonthlyBucket, section Section) []models.DriveItem {
	if section == SectionWiki {
		return b.Wiki
	}
	return b.Drive
}

func setSectionItems(b models.MonthlyBucket, section Section, items []models.DriveItem) models.MonthlyBucket {
	if section == SectionWiki {
		b.Wiki = items
	} else {
		b.Drive = items
	}
	return b
}

// CreateDriveItem adds a folder or file under parentID ("" = root).
func (s *Synchronizer) CreateDriveItem(month string, section Section, parentID string, kind models.DriveItemKind, name string) models.DriveItem {
	item := models.DriveItem{
		ID:       uuid.NewString(),
		ParentID: parentID,
		Kind:     kind,
		Name:     name,
	}
	s.apply(func(st *models.AppState) {
		withBucket(st, month, func(b models.MonthlyBucket) models.MonthlyBucket {
			items := append(append([]models.DriveItem{}, sectionItems(b, section)...), item)
			return setSectionItems(b, section, items)
		})
	})
	return item
}

// rewriteDriveItem replaces one node through f.
func (s *Synchronizer) rewriteDriveItem(month string, section Section, itemID string, f func(models.DriveItem) models.DriveItem) error {
	found := false
	s.apply(func(st *models.AppState) {
		withBucket(st, month, func(b models.MonthlyBucket) models.MonthlyBucket {
			src := sectionItems(b, section)
			next := make([]models.DriveItem, len(src))
			for i, it := range src {
				if it.ID == itemID {
					it = f(it)
					found = true
				}
				next[i] = it
			}
			return setSectionItems(b, section, next)
		})
	})
	if !found {
		return ErrItemNotFound
	}
	return nil
}

// RenameDriveItem changes a node's display name.
func (s *Synchronizer) RenameDriveItem(month string, section Section, itemID, name string) error {
	return s.rewriteDriveItem(month, section, itemID, func(it models.DriveItem) models.DriveItem {
		it.Name = name
		return it
	})
}

// SetDriveItemContent replaces a file node's payload.
func (s *Synchronizer) SetDriveItemContent(month string, section Section, itemID, content string) error {
	return s.rewriteDriveItem(month, section, itemID, func(it models.DriveItem) models.DriveItem {
		it.Content = content
		return it
	})
}

// DeleteDriveItem removes a node and its full subtree in one batch.
func (s *Synchronizer) DeleteDriveItem(month string, section Section, itemID string) {
	s.apply(func(st *models.AppState) {
		withBucket(st, month, func(b models.MonthlyBucket) models.MonthlyBucket {
			return setSectionItems(b, section, models.DeleteSubtree(sectionItems(b, section), itemID))
		})
	})
}

// ---------------------------------------------------------------------------
// Roles and team
// ---------------------------------------------------------------------------

// RegisterRole adds a role name to the open vocabulary.
func (s *Synchronizer) RegisterRole(name string) error {
	var regErr error
	s.apply(func(st *models.AppState) {
		reg := roles.NewRegistry(st.AvailableRoles)
		if regErr = reg.Register(name); regErr != nil {
			return
		}
		st.AvailableRoles = reg.List()
	})
	return regErr
}

// rewriteUser replaces one roster entry through f.
func (s *Synchronizer) rewriteUser(userID string, f func(models.User) models.User) (found bool) {
	s.apply(func(st *models.AppState) {
		next := make([]models.User, len(st.Team))
		for i, u := range st.Team {
			if u.ID == userID {
				u = f(u)
				found = true
			}
			next[i] = u
		}
		st.Team = next
	})
	return found
}

// SetDisplayName renames a roster entry and persists immediately so the
// change is visible to other sessions without the debounce delay.
func (s *Synchronizer) SetDisplayName(ctx context.Context, userID, name string) error {
	found := false
	err := s.applyNow(ctx, func(st *models.AppState) {
		next := make([]models.User, len(st.Team))
		for i, u := range st.Team {
			if u.ID == userID {
				u.Name = name
				found = true
			}
			next[i] = u
		}
		st.Team = next
	})
	if !found {
		return ErrNotInRoster
	}
	s.mu.Lock()
	if s.current != nil && s.current.ID == userID {
		u := *s.current
		u.Name = name
		s.current = &u
	}
	s.mu.Unlock()
	return err
}

// SetUserRole assigns a registered role to a roster entry.
func (s *Synchronizer) SetUserRole(userID, role string) error {
	s.mu.Lock()
	reg := roles.NewRegistry(s.state.AvailableRoles)
	s.mu.Unlock()
	if _, err := reg.Resolve(role); err != nil {
		return err
	}
	if !s.rewriteUser(userID, func(u models.User) models.User {
		u.Role = role
		return u
	}) {
		return ErrNotInRoster
	}
	return nil
}

// ApproveUser marks a pending account as onboarded.
func (s *Synchronizer) ApproveUser(userID string) error {
	if !s.rewriteUser(userID, func(u models.User) models.User {
		u.IsApproved = true
		return u
	}) {
		return ErrNotInRoster
	}
	return nil
}

// SetUserActive toggles roster activation.
func (s *Synchronizer) SetUserActive(userID string, active bool) error {
	if !s.rewriteUser(userID, func(u models.User) models.User {
		u.IsActive = active
		return u
	}) {
		return ErrNotInRoster
	}
	return nil
}

// RemoveUser drops a roster entry. Client assignments pointing at the
// removed id are left dangling on purpose.
func (s *Synchronizer) RemoveUser(userID string) {
	s.apply(func(st *models.AppState) {
		next := make([]models.User, 0, len(st.Team))
		for _, u := range st.Team {
			if u.ID != userID {
				next = append(next, u)
			}
		}
		st.Team = next
	})
}

func rosterName(team []models.User, userID string) string {
	for _, u := range team {
		if u.ID == userID {
			return u.Name
		}
	}
	return userID
}
