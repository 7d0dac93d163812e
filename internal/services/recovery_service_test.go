package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/masthead-news/masthead/internal/models"
)

func newRecoveryFixture(t *testing.T) (*RecoveryService, *mfaFixture) {
	t.Helper()
	f, _ := newMFAFixture(t)
	mfaRepo := &MockMFAConfigRepository{
		GetByAccountIDFunc: func(ctx context.Context, accountID string) (*models.MFAConfig, error) {
			return f.config, nil
		},
		RemoveRecoveryCodeFunc: func(ctx context.Context, accountID, hash string) error {
			for i, h := range f.config.RecoveryCodeHashes {
				if h == hash {
					f.config.RecoveryCodeHashes = append(f.config.RecoveryCodeHashes[:i], f.config.RecoveryCodeHashes[i+1:]...)
					return nil
				}
			}
			return models.ErrNotFound
		},
		ReplaceRecoveryCodesFunc: func(ctx context.Context, accountID string, hashes []string) error {
			f.config.RecoveryCodeHashes = hashes
			return nil
		},
	}
	svc := NewRecoveryService(f.svc, mfaRepo, newTestAuditService(f.audit), discardLogger())
	return svc, f
}

func seedRecoveryCode(t *testing.T, f *mfaFixture, code string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	require.NoError(t, err)
	f.config.RecoveryCodeHashes = append(f.config.RecoveryCodeHashes, string(hash))
}

func TestRecoveryService_Generate(t *testing.T) {
	svc, f := newRecoveryFixture(t)

	codes, err := svc.Generate(context.Background(), f.account.ID, RequestContext{})
	require.NoError(t, err)
	require.Len(t, codes, RecoveryCodeCount)
	require.Len(t, f.config.RecoveryCodeHashes, RecoveryCodeCount)

	// Stored values are bcrypt hashes of the returned codes, not plaintext.
	for i, code := range codes {
		assert.NotContains(t, f.config.RecoveryCodeHashes, code)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(f.config.RecoveryCodeHashes[i]), []byte(code)))
	}
}

func TestRecoveryService_Generate_ReplacesPreviousBatch(t *testing.T) {
	svc, f := newRecoveryFixture(t)
	seedRecoveryCode(t, f, "OLDCODE23456")

	_, err := svc.Generate(context.Background(), f.account.ID, RequestContext{})
	require.NoError(t, err)

	// The pre-existing code is gone.
	for _, hash := range f.config.RecoveryCodeHashes {
		assert.Error(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("OLDCODE23456")))
	}
}

func TestRecoveryService_Generate_RequiresMFAEnabled(t *testing.T) {
	svc, f := newRecoveryFixture(t)
	f.config.Enabled = false

	_, err := svc.Generate(context.Background(), f.account.ID, RequestContext{})
	assert.ErrorIs(t, err, models.ErrMFANotEnabled)
}

func TestRecoveryService_Consume_AnyMethodTicketAccepted(t *testing.T) {
	svc, f := newRecoveryFixture(t)
	seedRecoveryCode(t, f, "VALIDCODE234")

	// Recovery ignores the ticket's method binding; a totp-bound ticket
	// redeems a recovery code just fine.
	ticket, err := f.tickets.Issue(f.account.ID, models.MFAMethodTOTP, models.LaneStandard)
	require.NoError(t, err)

	tokens, err := svc.Consume(context.Background(), ticket, "VALIDCODE234", RequestContext{})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
}

func TestRecoveryService_Consume_SingleUse(t *testing.T) {
	svc, f := newRecoveryFixture(t)
	seedRecoveryCode(t, f, "VALIDCODE234")
	ctx := context.Background()

	first, err := f.tickets.Issue(f.account.ID, models.MFAMethodEmail, models.LaneStandard)
	require.NoError(t, err)
	_, err = svc.Consume(ctx, first, "VALIDCODE234", RequestContext{})
	require.NoError(t, err)

	// Same code against a fresh ticket: spent codes read as invalid.
	second, err := f.tickets.Issue(f.account.ID, models.MFAMethodEmail, models.LaneStandard)
	require.NoError(t, err)
	_, err = svc.Consume(ctx, second, "VALIDCODE234", RequestContext{})
	assert.ErrorIs(t, err, models.ErrCodeInvalid)
}

func TestRecoveryService_Consume_WrongCode(t *testing.T) {
	svc, f := newRecoveryFixture(t)
	seedRecoveryCode(t, f, "VALIDCODE234")

	ticket, err := f.tickets.Issue(f.account.ID, models.MFAMethodEmail, models.LaneStandard)
	require.NoError(t, err)

	_, err = svc.Consume(context.Background(), ticket, "WRONGCODE234", RequestContext{})
	assert.ErrorIs(t, err, models.ErrCodeInvalid)

	// The ticket survives for another attempt or a different method.
	_, err = f.tickets.Verify(context.Background(), ticket)
	assert.NoError(t, err)
}

func TestRecoveryService_Consume_CaseInsensitive(t *testing.T) {
	svc, f := newRecoveryFixture(t)
	seedRecoveryCode(t, f, "VALIDCODE234")

	ticket, err := f.tickets.Issue(f.account.ID, models.MFAMethodEmail, models.LaneStandard)
	require.NoError(t, err)

	_, err = svc.Consume(context.Background(), ticket, "  validcode234 ", RequestContext{})
	assert.NoError(t, err)
}

func TestRecoveryService_Consume_ConsumedTicketRejected(t *testing.T) {
	svc, f := newRecoveryFixture(t)
	seedRecoveryCode(t, f, "VALIDCODE234")
	seedRecoveryCode(t, f, "VALIDCODE235")
	ctx := context.Background()

	ticket, err := f.tickets.Issue(f.account.ID, models.MFAMethodEmail, models.LaneStandard)
	require.NoError(t, err)

	_, err = svc.Consume(ctx, ticket, "VALIDCODE234", RequestContext{})
	require.NoError(t, err)

	// The ticket was consumed by the success; the second code cannot ride
	// the same ticket.
	_, err = svc.Consume(ctx, ticket, "VALIDCODE235", RequestContext{})
	assert.ErrorIs(t, err, models.ErrTicketConsumed)
}
