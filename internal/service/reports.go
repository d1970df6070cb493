package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"centerequity/portal/internal/models"
	"centerequity/portal/internal/timeutil"
)

// Reports computes the admin-only aggregations. Admin-rank users are
// excluded from every count, list and export.
type Reports struct {
	users  UserStore
	visits VisitStore
	sink   ExportSink
	log    zerolog.Logger
	now    func() time.Time
}

func NewReports(users UserStore, visits VisitStore, sink ExportSink, log zerolog.Logger) *Reports {
	return &Reports{
		users:  users,
		visits: visits,
		sink:   sink,
		log:    log,
		now:    time.Now,
	}
}

type Overview struct {
	ByReason    map[string]int
	ByRank      map[models.Rank]int
	BySubscribe map[models.Subscribe]int
	LoginsToday int
	NewToday    []models.User
	Users       []models.User
	Subscribers []models.User
}

func (r *Reports) Overview(ctx context.Context) (Overview, error) {
	users, err := r.users.ListNonAdmin(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("list users: %w", err)
	}

	entries, err := r.visits.ListAll(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("list visits: %w", err)
	}

	byID := make(map[string]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	overview := Overview{
		ByReason:    make(map[string]int),
		ByRank:      make(map[models.Rank]int),
		BySubscribe: make(map[models.Subscribe]int),
	}

	for _, entry := range entries {
		author, ok := byID[entry.AuthorID]
		if !ok {
			// admin-authored or orphaned entry
			continue
		}
		overview.ByReason[entry.Reason]++
		overview.ByRank[author.Rank]++
		overview.BySubscribe[author.Subscribe]++
	}

	now := r.now()
	for _, user := range users {
		if timeutil.SameDay(user.LastLogin.At, now) {
			overview.LoginsToday += user.LastLogin.Attempts
		}
		if timeutil.SameDay(user.UserSince, now) {
			overview.NewToday = append(overview.NewToday, user)
		}
		if user.Subscribe == models.SubscribeYes {
			overview.Subscribers = append(overview.Subscribers, user)
		}
	}

	c := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(users, func(i, j int) bool {
		return c.CompareString(users[i].FirstName, users[j].FirstName) < 0
	})
	overview.Users = users

	return overview, nil
}

// SubscriberExport is the semicolon-joined list of subscriber
// identifiers handed to external tooling.
func (r *Reports) SubscriberExport(ctx context.Context) (string, error) {
	users, err := r.users.ListNonAdmin(ctx)
	if err != nil {
		return "", fmt.Errorf("list users: %w", err)
	}

	var names []string
	for _, user := range users {
		if user.Subscribe == models.SubscribeYes {
			names = append(names, user.Username)
		}
	}
	return strings.Join(names, ";"), nil
}

// PublishSubscriberExport writes the current export to the object
// store and returns the object key.
func (r *Reports) PublishSubscriberExport(ctx context.Context) (string, error) {
	export, err := r.SubscriberExport(ctx)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("subscribers/%s.txt", r.now().UTC().Format("20060102T150405Z"))
	if err := r.sink.PutSubscriberExport(ctx, key, export); err != nil {
		return "", fmt.Errorf("publish export: %w", err)
	}

	r.log.Info().Str("key", key).Msg("subscriber export published")
	return key, nil
}

// PurgeNonAdmin removes every non-admin user and every visit entry
// regardless of author. Destructive and irreversible.
func (r *Reports) PurgeNonAdmin(ctx context.Context) error {
	usersDeleted, err := r.users.DeleteNonAdmin(ctx)
	if err != nil {
		return fmt.Errorf("delete users: %w", err)
	}

	entriesDeleted, err := r.visits.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("delete visits: %w", err)
	}

	r.log.Info().
		Int64("users_deleted", usersDeleted).
		Int64("entries_deleted", entriesDeleted).
		Msg("non-admin purge complete")
	return nil
}
