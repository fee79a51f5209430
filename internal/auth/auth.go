// Package auth implements the identity provider: credential accounts backed
// by MongoDB, JWT session tokens, and sign-in/sign-out event fan-out.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when email or password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when signing up with an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNoSession is returned when a token does not resolve to a session.
	ErrNoSession = errors.New("no active session")
)

// Session is the authenticated identity handed to the synchronizer. Subject
// is the provider-assigned stable id, never the roster user id.
type Session struct {
	Subject     string `json:"subject"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Token       string `json:"token,omitempty"`
}

// account is the stored credential record.
type account struct {
	Subject      string    `bson:"_id"`
	Email        string    `bson:"email"`
	DisplayName  string    `bson:"display_name"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

// Service issues sessions against the accounts collection.
type Service struct {
	accounts *mongo.Collection
	tokens   *TokenIssuer
	events   *eventBus
	log      *logrus.Entry
}

// NewService creates the auth service and ensures the unique email index.
func NewService(db *mongo.Database, secret string, tokenTTL time.Duration, log *logrus.Logger) *Service {
	s := &Service{
		accounts: db.Collection("accounts"),
		tokens:   NewTokenIssuer(secret, tokenTTL),
		events:   newEventBus(),
		log:      log.WithField("component", "auth"),
	}
	s.ensureIndexes()
	return s
}

func (s *Service) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.accounts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		// Without the unique index duplicate sign-ups stop failing fast.
		s.log.WithError(err).Warn("unique email index creation failed")
	}
}

// SignUp registers a new account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc := account{
		Subject:      uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.accounts.InsertOne(ctx, acc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.log.WithField("email", email).Info("account created")
	return s.issue(acc)
}

// SignIn verifies credentials and issues a session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var acc account
	err := s.accounts.FindOne(ctx, bson.M{"email": email}).Decode(&acc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(acc)
}

// SignOut invalidates nothing server-side (tokens are stateless) but emits
// the SIGNED_OUT event so synchronizers drop the current identity.
func (s *Service) SignOut(session *Session) {
	s.events.publish(SessionEvent{Type: SignedOut, Session: session})
}

// SessionFromToken resolves a bearer token to its session, the provider's
// "current session" lookup.
func (s *Service) SessionFromToken(token string) (*Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, ErrNoSession
	}
	return &Session{
		Subject:     claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		Token:       token,
	}, nil
}

// Subscribe returns a session-event channel and a release function. The
// release function must be called on teardown.
func (s *Service) Subscribe() (<-chan SessionEvent, func()) {
	return s.events.subscribe()
}

func (s *Service) issue(acc account) (*Session, error) {
	token, err := s.tokens.Issue(acc.Subject, acc.Email, acc.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	session := &Session{
		Subject:     acc.Subject,
		Email:       acc.Email,
		DisplayName: acc.DisplayName,
		Token:       token,
	}
	s.events.publish(SessionEvent{Type: SignedIn, Session: session})
	return session, nil
}
