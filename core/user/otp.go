package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/mzalendo/shule/core"
)

var otpSalt = []byte("shule.core.user.otp")

// challenge is a pending one-time-passcode keyed by the identity's id, so
// identities without an email address (auto-provisioned parents) stay
// isolated from each other. Only the code's HMAC is kept; the plain code
// exists in the issuing request's scope and in the delivery message.
type challenge struct {
	identityID        string
	codeHash          []byte
	issuedAt          time.Time
	expiresAt         time.Time
	attemptsRemaining int
}

// ChallengeStore is the process-wide store of pending OTP challenges.
// It is the only shared mutable state in the auth flow: every read-modify
// cycle happens under the store mutex so concurrent verifies for one identity
// cannot double-spend the attempts budget or both consume a single-use code.
type ChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*challenge

	secretKey   []byte
	codeLength  int
	maxAttempts int
	ttl         time.Duration
	nowFunc     func() time.Time // mockable
}

func NewChallengeStore(conf *core.Config) *ChallengeStore {
	return &ChallengeStore{
		challenges:  make(map[string]*challenge),
		secretKey:   conf.SecretKey,
		codeLength:  conf.Auth.OTPLength,
		maxAttempts: conf.Auth.OTPMaxAttempts,
		ttl:         conf.Auth.OTPExpirationDelta,
		nowFunc:     time.Now,
	}
}

// Issue creates a new challenge for the identity and returns the plain code
// for out-of-band delivery. Any prior unconsumed challenge for that identity
// is overwritten: at most one challenge is outstanding per identity and a
// lost overwrite race leaves only the last writer's code valid.
func (store *ChallengeStore) Issue(identityID string) string {
	code := core.RandomCode(store.codeLength)
	now := store.nowFunc()

	store.mu.Lock()
	defer store.mu.Unlock()
	store.challenges[identityID] = &challenge{
		identityID:        identityID,
		codeHash:          store.hash(identityID, code),
		issuedAt:          now,
		expiresAt:         now.Add(store.ttl),
		attemptsRemaining: store.maxAttempts,
	}
	return code
}

// Verify is an atomic check-and-mutate: it decrements the attempts budget on
// every call, fails ErrOTPAttemptsExhausted once the budget is spent, and
// deletes the challenge on success so a code can never be replayed. Expiry is
// evaluated lazily here against wall-clock; an expired challenge is deleted.
func (store *ChallengeStore) Verify(identityID, submittedCode string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	ch, ok := store.challenges[identityID]
	if !ok {
		return ErrOTPNotFound
	}
	if store.nowFunc().After(ch.expiresAt) {
		delete(store.challenges, identityID)
		return ErrOTPExpired
	}
	if ch.attemptsRemaining <= 0 {
		return ErrOTPAttemptsExhausted
	}
	ch.attemptsRemaining--

	if subtle.ConstantTimeCompare(ch.codeHash, store.hash(identityID, submittedCode)) != 1 {
		return ErrOTPMismatch
	}
	delete(store.challenges, identityID) // single use
	return nil
}

func (store *ChallengeStore) hash(identityID, code string) []byte {
	key := sha256.Sum256(append(otpSalt, store.secretKey...))
	h := hmac.New(sha256.New, key[:])
	h.Write([]byte(identityID))
	h.Write([]byte{0})
	h.Write([]byte(code))
	return h.Sum(nil)
}
