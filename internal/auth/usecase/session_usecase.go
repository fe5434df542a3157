package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
	authService "github.com/sshdeck/sshdeck/internal/auth/service"
	"github.com/sshdeck/sshdeck/internal/config"
	cryptoUsecase "github.com/sshdeck/sshdeck/internal/crypto/usecase"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

// residentSession tracks one session holding a reference on its user's
// resident DEK. The unlocked flag flips to true only after every login step
// (including the second factor) has passed.
type residentSession struct {
	userID   uuid.UUID
	unlocked bool
}

// SessionUseCase owns the session lifecycle: creation under the per-user
// cap, token validation, revocation, and the background sweeper. It also
// holds the process-local data-unlocked state; that state is deliberately
// not persisted, so every session comes back locked after a restart.
type SessionUseCase struct {
	config       *config.Config
	sessionRepo  SessionRepository
	tokenService authService.TokenService
	vault        *cryptoUsecase.DekVault
	logger       *slog.Logger

	mu       sync.Mutex
	resident map[uuid.UUID]*residentSession
}

func NewSessionUseCase(
	cfg *config.Config,
	sessionRepo SessionRepository,
	tokenService authService.TokenService,
	vault *cryptoUsecase.DekVault,
	logger *slog.Logger,
) *SessionUseCase {
	return &SessionUseCase{
		config:       cfg,
		sessionRepo:  sessionRepo,
		tokenService: tokenService,
		vault:        vault,
		logger:       logger,
		resident:     make(map[uuid.UUID]*residentSession),
	}
}

// Create persists a new session for the user. When the user is at the
// session cap, the oldest live sessions are revoked to make room.
func (s *SessionUseCase) Create(ctx context.Context, userID uuid.UUID, deviceClass authDomain.DeviceClass, deviceDesc string) (*authDomain.Session, error) {
	if !deviceClass.Valid() {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown device class %q", deviceClass)
	}

	live, err := s.sessionRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Evict oldest first until there is room for the new session.
	for i := 0; len(live)-i >= s.config.SessionCap; i++ {
		if err := s.revokeInternal(ctx, live[i]); err != nil {
			return nil, err
		}
		s.logger.Info("session cap reached, evicted oldest session",
			slog.String("user_id", userID.String()),
			slog.String("session_id", live[i].ID.String()),
		)
	}

	now := time.Now().UTC()
	session := &authDomain.Session{
		ID:             uuid.Must(uuid.NewV7()),
		UserID:         userID,
		DeviceClass:    deviceClass,
		DeviceDesc:     deviceDesc,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.config.SessionTTL(string(deviceClass))),
		LastActivityAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Validate checks a bearer token and returns the live session it binds.
// Activity is recorded as a side effect.
func (s *SessionUseCase) Validate(ctx context.Context, token string) (*authDomain.Session, error) {
	sessionID, _, err := s.tokenService.Validate(token)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, authDomain.ErrSessionExpired
		}
		return nil, err
	}

	if !session.Alive(time.Now().UTC()) {
		return nil, authDomain.ErrSessionExpired
	}

	if err := s.sessionRepo.Touch(ctx, session.ID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return session, nil
}

// TrackResident records that the session holds a reference on the user's
// resident DEK. The session stays gated until MarkUnlocked.
func (s *SessionUseCase) TrackResident(sessionID, userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resident[sessionID] = &residentSession{userID: userID}
}

// MarkUnlocked opens the data gate for the session.
func (s *SessionUseCase) MarkUnlocked(sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.resident[sessionID]; ok {
		entry.unlocked = true
	}
}

// IsUnlocked reports whether the session passed every login step and its
// user's DEK is still resident.
func (s *SessionUseCase) IsUnlocked(sessionID uuid.UUID) bool {
	s.mu.Lock()
	entry, ok := s.resident[sessionID]
	s.mu.Unlock()
	if !ok || !entry.unlocked {
		return false
	}
	return s.vault.Get(entry.userID) != nil
}

// AwaitingSecondFactor reports whether the session holds key material but
// has not yet passed TOTP verification.
func (s *SessionUseCase) AwaitingSecondFactor(sessionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.resident[sessionID]
	return ok && !entry.unlocked
}

// DropUserResidency clears the unlocked state of every session of the user.
// Wired as the vault's eviction callback: when the watchdog wipes a DEK,
// the sessions that referenced it fall back to the locked state.
func (s *SessionUseCase) DropUserResidency(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sessionID, entry := range s.resident {
		if entry.userID == userID {
			delete(s.resident, sessionID)
		}
	}
}

// Revoke ends a session and releases its hold on the user's DEK.
func (s *SessionUseCase) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.revokeInternal(ctx, session)
}

func (s *SessionUseCase) revokeInternal(ctx context.Context, session *authDomain.Session) error {
	if err := s.sessionRepo.Revoke(ctx, session.ID, time.Now().UTC()); err != nil {
		return err
	}
	s.releaseResident(session.ID)
	return nil
}

// RevokeAllForUser ends every session of the user. Used by password reset
// and account deletion.
func (s *SessionUseCase) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.sessionRepo.RevokeAllForUser(ctx, userID, time.Now().UTC()); err != nil {
		return err
	}

	s.mu.Lock()
	sessionIDs := make([]uuid.UUID, 0)
	for sessionID, entry := range s.resident {
		if entry.userID == userID {
			sessionIDs = append(sessionIDs, sessionID)
		}
	}
	s.mu.Unlock()

	for _, sessionID := range sessionIDs {
		s.releaseResident(sessionID)
	}
	return nil
}

// releaseResident drops the session's vault reference, if it holds one.
func (s *SessionUseCase) releaseResident(sessionID uuid.UUID) {
	s.mu.Lock()
	entry, ok := s.resident[sessionID]
	if ok {
		delete(s.resident, sessionID)
	}
	s.mu.Unlock()

	if ok {
		s.vault.Release(entry.userID)
	}
}

// ListForUser returns the user's live sessions.
func (s *SessionUseCase) ListForUser(ctx context.Context, userID uuid.UUID) ([]*authDomain.Session, error) {
	return s.sessionRepo.ListByUser(ctx, userID)
}

// ListAll returns every live session across all users. Admin surface.
func (s *SessionUseCase) ListAll(ctx context.Context) ([]*authDomain.Session, error) {
	return s.sessionRepo.ListAll(ctx)
}

// Run sweeps expired and revoked sessions until the context is canceled.
func (s *SessionUseCase) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			deleted, err := s.sessionRepo.DeleteDead(ctx, now.UTC())
			if err != nil {
				s.logger.Error("session sweep failed", slog.String("error", err.Error()))
				continue
			}
			if deleted > 0 {
				s.logger.Info("swept dead sessions", slog.Int64("deleted", deleted))
			}
		}
	}
}
