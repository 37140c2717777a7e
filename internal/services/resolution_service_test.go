// internal/services/resolution_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkmarket/commission-backend/internal/apperrors"
	"github.com/inkmarket/commission-backend/internal/models"
	"github.com/inkmarket/commission-backend/internal/utils"
)

const arbitrationNote = "Reviewed the full upload history and chat log; the delivered work matches the agreed brief and timeline."

// escalatedCancel files a client cancel ticket, escalates it and moves the
// resolution past its counterproof window so an admin can decide it.
func (e *testEnv) escalatedCancel(t *testing.T, client, artist *models.User, contract *models.Contract) (original, resolution *models.Ticket) {
	t.Helper()
	original, err := e.tickets.OpenTicket(client.ID, contract.ID, &OpenTicketRequest{
		Type:        models.TicketTypeCancel,
		Description: "the artist has gone silent for weeks",
	})
	require.NoError(t, err)

	resolution, err = e.tickets.Escalate(client.ID, original.ID)
	require.NoError(t, err)
	e.lapseCounterWindow(t, resolution)
	return original, e.reloadTicket(t, resolution.ID)
}

func (e *testEnv) lapseCounterWindow(t *testing.T, ticket *models.Ticket) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.Ticket{}).
		Where("id = ?", ticket.ID).
		Update("counter_expires_at", time.Now().Add(-time.Hour)).Error)
	require.NoError(t, e.sweeper.SweepTicketWindows(time.Now()))
}

func TestResolveValidation(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	admin := env.createUser(t, models.UserTypeAdmin)
	contract := env.createContract(t, client, artist, testSnapshot())
	_, resolution := env.escalatedCancel(t, client, artist, contract)

	_, err := env.resolutions.Resolve(admin.ID, resolution.ID, &ResolveRequest{
		Decision: "split_even",
		Note:     arbitrationNote,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidDecision))

	_, err = env.resolutions.Resolve(admin.ID, resolution.ID, &ResolveRequest{
		Decision: models.DecisionFavorClient,
		Note:     "denied",
	})
	assert.True(t, apperrors.IsValidation(err), "a terse note is not a justification")

	_, err = env.resolutions.Resolve(admin.ID, uuid.New(), &ResolveRequest{
		Decision: models.DecisionFavorClient,
		Note:     arbitrationNote,
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestResolveOnlyAwaitingReview(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	admin := env.createUser(t, models.UserTypeAdmin)
	contract := env.createContract(t, client, artist, testSnapshot())

	original, err := env.tickets.OpenTicket(client.ID, contract.ID, &OpenTicketRequest{
		Type:        models.TicketTypeCancel,
		Description: "the artist has gone silent for weeks",
	})
	require.NoError(t, err)
	resolution, err := env.tickets.Escalate(client.ID, original.ID)
	require.NoError(t, err)

	// Still inside the counterproof window.
	_, err = env.resolutions.Resolve(admin.ID, resolution.ID, &ResolveRequest{
		Decision: models.DecisionFavorClient,
		Note:     arbitrationNote,
	})
	assert.True(t, apperrors.IsIllegalTransition(err))

	// A plain cancel ticket is not an admin's to decide.
	_, err = env.resolutions.Resolve(admin.ID, original.ID, &ResolveRequest{
		Decision: models.DecisionFavorClient,
		Note:     arbitrationNote,
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestResolveCancelTicketFavorsSubmitter(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	admin := env.createUser(t, models.UserTypeAdmin)
	contract := env.createContract(t, client, artist, testSnapshot())
	original, resolution := env.escalatedCancel(t, client, artist, contract)

	decided, err := env.resolutions.Resolve(admin.ID, resolution.ID, &ResolveRequest{
		Decision: models.DecisionFavorClient,
		Note:     arbitrationNote,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TicketStatusResolved, decided.Status)
	assert.Equal(t, models.DecisionFavorClient, *decided.Decision)
	assert.Equal(t, arbitrationNote, decided.ResolutionNote)
	assert.Equal(t, admin.ID, *decided.ResolvedBy)

	// The disputed cancel was granted, but not voluntarily.
	target := env.reloadTicket(t, original.ID)
	assert.Equal(t, models.TicketStatusResolved, target.Status)
	require.NotNil(t, target.AcceptedByCounterparty)
	assert.False(t, *target.AcceptedByCounterparty)

	reloaded := env.reloadContract(t, contract.ID)
	assert.Equal(t, models.ContractStatusCancelledClient, reloaded.Status)
	settlement := env.settlementFor(t, contract.ID)
	assert.Equal(t, int64(10000), settlement.CancellationFee)

	// A decided resolution cannot be decided again.
	_, err = env.resolutions.Resolve(admin.ID, resolution.ID, &ResolveRequest{
		Decision: models.DecisionFavorArtist,
		Note:     arbitrationNote,
	})
	assert.True(t, apperrors.IsIllegalTransition(err))
}

func TestResolveCancelTicketDenied(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	admin := env.createUser(t, models.UserTypeAdmin)
	contract := env.createContract(t, client, artist, testSnapshot())
	original, resolution := env.escalatedCancel(t, client, artist, contract)

	_, err := env.resolutions.Resolve(admin.ID, resolution.ID, &ResolveRequest{
		Decision: models.DecisionFavorArtist,
		Note:     arbitrationNote,
	})
	require.NoError(t, err)

	// Denied: the cancel closes without effect and the work continues.
	target := env.reloadTicket(t, original.ID)
	assert.Equal(t, models.TicketStatusCancelled, target.Status)
	assert.Equal(t, models.ContractStatusActive, env.reloadContract(t, contract.ID).Status)

	var settlements int64
	require.NoError(t, env.db.Model(&models.Settlement{}).Where("contract_id = ?", contract.ID).Count(&settlements).Error)
	assert.Zero(t, settlements)
}

// disputedFinalUpload submits a final, has the client reject it, and escalates
// the rejection into a resolution ticket past its window.
func (e *testEnv) disputedFinalUpload(t *testing.T, client, artist *models.User, contract *models.Contract) (*models.Upload, *models.Ticket) {
	t.Helper()
	upload, err := e.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
		Kind:   models.UploadKindFinal,
		Images: []string{"https://cdn.example.com/final.png"},
	})
	require.NoError(t, err)

	_, err = e.contracts.ReviewUpload(client.ID, upload.ID, &ReviewUploadRequest{
		Accept: false,
		Note:   "this is not what we agreed on",
	})
	require.NoError(t, err)

	targetType := models.TargetFinalUpload
	resolution, err := e.tickets.OpenTicket(artist.ID, contract.ID, &OpenTicketRequest{
		Type:        models.TicketTypeResolution,
		Description: "the rejection is unreasonable, the work matches the brief",
		TargetType:  &targetType,
		TargetID:    &upload.ID,
	})
	require.NoError(t, err)
	e.lapseCounterWindow(t, resolution)
	return upload, e.reloadTicket(t, resolution.ID)
}

func TestResolveFinalUploadFavorArtist(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	admin := env.createUser(t, models.UserTypeAdmin)
	contract := env.createContract(t, client, artist, testSnapshot())
	upload, resolution := env.disputedFinalUpload(t, client, artist, contract)

	_, err := env.resolutions.Resolve(admin.ID, resolution.ID, &ResolveRequest{
		Decision: models.DecisionFavorArtist,
		Note:     arbitrationNote,
	})
	require.NoError(t, err)

	// The rejected delivery is force-accepted with its downstream effects.
	var reviewed models.Upload
	require.NoError(t, env.db.First(&reviewed, "id = ?", upload.ID).Error)
	assert.Equal(t, models.UploadStatusAccepted, reviewed.Status)

	reloaded := env.reloadContract(t, contract.ID)
	assert.Equal(t, models.ContractStatusCompleted, reloaded.Status)
	settlement := env.settlementFor(t, contract.ID)
	assert.Equal(t, int64(125000), settlement.ArtistAmount)
}

func TestResolveFinalUploadFavorClient(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	admin := env.createUser(t, models.UserTypeAdmin)
	contract := env.createContract(t, client, artist, testSnapshot())
	upload, resolution := env.disputedFinalUpload(t, client, artist, contract)

	_, err := env.resolutions.Resolve(admin.ID, resolution.ID, &ResolveRequest{
		Decision: models.DecisionFavorClient,
		Note:     arbitrationNote,
	})
	require.NoError(t, err)

	// The rejection stands and the engagement ends with the client made whole.
	var reviewed models.Upload
	require.NoError(t, env.db.First(&reviewed, "id = ?", upload.ID).Error)
	assert.Equal(t, models.UploadStatusRejected, reviewed.Status)

	reloaded := env.reloadContract(t, contract.ID)
	assert.Equal(t, models.ContractStatusNotCompleted, reloaded.Status)
	settlement := env.settlementFor(t, contract.ID)
	assert.Zero(t, settlement.ArtistAmount)
	assert.Equal(t, int64(125000), settlement.ClientAmount)
}

func TestOpenResolutionTicketRequiresValidTarget(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, testSnapshot())

	_, err := env.tickets.OpenTicket(artist.ID, contract.ID, &OpenTicketRequest{
		Type:        models.TicketTypeResolution,
		Description: "disputing a review that does not exist",
	})
	assert.True(t, apperrors.IsValidation(err), "resolution without target")

	targetType := models.TargetFinalUpload
	missing := uuid.New()
	_, err = env.tickets.OpenTicket(artist.ID, contract.ID, &OpenTicketRequest{
		Type:        models.TicketTypeResolution,
		Description: "disputing a review that does not exist",
		TargetType:  &targetType,
		TargetID:    &missing,
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListPendingResolutions(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, testSnapshot())

	// One resolution still in its window, one ready for review, plus the
	// underlying cancel tickets which must never surface here.
	_, err := env.tickets.OpenTicket(client.ID, contract.ID, &OpenTicketRequest{
		Type:        models.TicketTypeCancel,
		Description: "first grievance about this commission",
	})
	require.NoError(t, err)
	_, ready := env.escalatedCancel(t, client, artist, contract)

	params := utils.PaginationParams{Page: 1, Limit: 20}
	pending, total, err := env.resolutions.ListPending(params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, pending, 1)
	assert.Equal(t, ready.ID, pending[0].ID)
	assert.Equal(t, contract.ID, pending[0].Contract.ID)
}
