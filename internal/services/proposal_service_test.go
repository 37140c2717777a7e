// internal/services/proposal_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/inkmarket/commission-backend/internal/apperrors"
	"github.com/inkmarket/commission-backend/internal/models"
)

func TestCreateProposal(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	listing := env.createListing(t, artist.ID, testSnapshot())

	proposal, err := env.proposals.CreateProposal(client.ID, &CreateProposalRequest{
		ListingID:   listing.ID,
		Selection:   testSelection(),
		Description: "A full-body character commission",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ProposalStatusPendingArtist, proposal.Status)
	assert.Equal(t, artist.ID, proposal.ArtistID)
	assert.Equal(t, int64(125000), proposal.Breakdown.Total)
	assert.Equal(t, listing.Snapshot.BasePrice, proposal.Snapshot.BasePrice)
	assert.WithinDuration(t, time.Now().Add(72*time.Hour), proposal.ExpiresAt, time.Minute)
}

func TestCreateProposalOwnListing(t *testing.T) {
	env := newTestEnv(t)
	artist := env.createUser(t, models.UserTypeArtist)
	listing := env.createListing(t, artist.ID, testSnapshot())

	_, err := env.proposals.CreateProposal(artist.ID, &CreateProposalRequest{
		ListingID:   listing.ID,
		Selection:   testSelection(),
		Description: "commissioning myself",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeAuthorization))
}

func TestCreateProposalInactiveListing(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	listing := env.createListing(t, artist.ID, testSnapshot())
	require.NoError(t, env.db.Model(listing).Update("active", false).Error)

	_, err := env.proposals.CreateProposal(client.ID, &CreateProposalRequest{
		ListingID:   listing.ID,
		Selection:   testSelection(),
		Description: "closed commissions",
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestArtistRespondAcceptWithAdjustment(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	proposal := env.createProposal(t, client, artist, testSnapshot(), models.ProposalStatusPendingArtist)

	updated, err := env.proposals.ArtistRespond(artist.ID, proposal.ID, &ArtistRespondRequest{
		Accept:    true,
		Surcharge: 15000,
		Discount:  5000,
		Reason:    "complex armor design",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ProposalStatusPendingClient, updated.Status)
	assert.Equal(t, int64(15000), updated.Surcharge)
	assert.Equal(t, int64(135000), updated.Breakdown.Total)
	assert.NotNil(t, updated.RespondedAt)
}

func TestArtistRespondReject(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	proposal := env.createProposal(t, client, artist, testSnapshot(), models.ProposalStatusPendingArtist)

	updated, err := env.proposals.ArtistRespond(artist.ID, proposal.ID, &ArtistRespondRequest{
		Accept: false,
		Reason: "fully booked",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusRejectedArtist, updated.Status)
	assert.Equal(t, "fully booked", updated.RejectionReason)

	// Terminal: the artist cannot flip to accept afterwards.
	_, err = env.proposals.ArtistRespond(artist.ID, proposal.ID, &ArtistRespondRequest{Accept: true})
	assert.True(t, apperrors.IsIllegalTransition(err))
}

func TestArtistRespondWrongArtist(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	other := env.createUser(t, models.UserTypeArtist)
	proposal := env.createProposal(t, client, artist, testSnapshot(), models.ProposalStatusPendingArtist)

	_, err := env.proposals.ArtistRespond(other.ID, proposal.ID, &ArtistRespondRequest{Accept: true})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeAuthorization))
}

func TestClientRejectReturnsToArtist(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	proposal := env.createProposal(t, client, artist, testSnapshot(), models.ProposalStatusPendingClient)

	updated, err := env.proposals.ClientRespond(client.ID, proposal.ID, &ClientRespondRequest{
		Accept:          false,
		RejectionReason: "the surcharge is too high",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusRejectedClient, updated.Status)

	// The artist may requote a client-rejected proposal.
	requoted, err := env.proposals.ArtistRespond(artist.ID, proposal.ID, &ArtistRespondRequest{Accept: true})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusPendingClient, requoted.Status)
}

func TestClientRespondBeforeArtist(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	proposal := env.createProposal(t, client, artist, testSnapshot(), models.ProposalStatusPendingArtist)

	_, err := env.proposals.ClientRespond(client.ID, proposal.ID, &ClientRespondRequest{Accept: true})
	assert.True(t, apperrors.IsIllegalTransition(err))
}

func TestClientCancelAnyNonTerminalState(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	proposal := env.createProposal(t, client, artist, testSnapshot(), models.ProposalStatusAccepted)

	cancelled, err := env.proposals.ClientCancel(client.ID, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusCancelledClient, cancelled.Status)

	_, err = env.proposals.ClientCancel(client.ID, proposal.ID)
	assert.True(t, apperrors.IsIllegalTransition(err))
}

func TestMarkPaidRequiresAccepted(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	proposal := env.createProposal(t, client, artist, testSnapshot(), models.ProposalStatusPendingClient)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.proposals.MarkPaid(tx, proposal, time.Now())
	})
	assert.True(t, apperrors.IsIllegalTransition(err))
}

func TestProposalExpiresLazily(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	proposal := env.createProposal(t, client, artist, testSnapshot(), models.ProposalStatusPendingArtist)

	require.NoError(t, env.db.Model(&models.Proposal{}).
		Where("id = ?", proposal.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	got, err := env.proposals.GetProposal(client.ID, models.UserTypeClient, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusExpired, got.Status)

	// A response against an expired proposal is rejected outright.
	_, err = env.proposals.ArtistRespond(artist.ID, proposal.ID, &ArtistRespondRequest{Accept: true})
	assert.True(t, apperrors.IsIllegalTransition(err))
}

func TestProposalStaleWrite(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	proposal := env.createProposal(t, client, artist, testSnapshot(), models.ProposalStatusAccepted)

	// A concurrent command won: the row's version moved past our copy, so the
	// guarded update must refuse to overwrite it.
	require.NoError(t, env.db.Model(&models.Proposal{}).
		Where("id = ?", proposal.ID).
		Update("lock_version", proposal.LockVersion+1).Error)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.proposals.MarkPaid(tx, proposal, time.Now())
	})
	assert.True(t, apperrors.IsStaleWrite(err))

	var reloaded models.Proposal
	require.NoError(t, env.db.First(&reloaded, "id = ?", proposal.ID).Error)
	assert.Equal(t, models.ProposalStatusAccepted, reloaded.Status)
}

func TestGetProposalPartyOnly(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	stranger := env.createUser(t, models.UserTypeClient)
	admin := env.createUser(t, models.UserTypeAdmin)
	proposal := env.createProposal(t, client, artist, testSnapshot(), models.ProposalStatusPendingArtist)

	_, err := env.proposals.GetProposal(stranger.ID, models.UserTypeClient, proposal.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeAuthorization))

	_, err = env.proposals.GetProposal(admin.ID, models.UserTypeAdmin, proposal.ID)
	assert.NoError(t, err)

	_, err = env.proposals.GetProposal(client.ID, models.UserTypeClient, uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListProposalsScopedByRole(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	otherClient := env.createUser(t, models.UserTypeClient)
	env.createProposal(t, client, artist, testSnapshot(), models.ProposalStatusPendingArtist)
	env.createProposal(t, otherClient, artist, testSnapshot(), models.ProposalStatusPendingArtist)

	params := &ProposalSearchParams{}
	params.Page, params.Limit = 1, 20

	result, err := env.proposals.ListProposals(client.ID, models.UserTypeClient, params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)

	result, err = env.proposals.ListProposals(artist.ID, models.UserTypeArtist, params)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Total)

	status := models.ProposalStatusPendingClient
	params.Status = &status
	result, err = env.proposals.ListProposals(artist.ID, models.UserTypeArtist, params)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Total)
}

func TestNegotiationReachesPaidContract(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)

	contract := env.createContract(t, client, artist, testSnapshot())
	assert.Equal(t, models.ContractStatusActive, contract.Status)
	assert.Equal(t, int64(125000), contract.Finance.Total)

	var proposal models.Proposal
	require.NoError(t, env.db.First(&proposal, "id = ?", contract.ProposalID).Error)
	assert.Equal(t, models.ProposalStatusPaid, proposal.Status)
	assert.NotNil(t, proposal.PaidAt)

	// Paying twice cannot mint a second contract.
	second := models.Contract{
		ProposalID: contract.ProposalID,
		ListingID:  contract.ListingID,
		ClientID:   client.ID,
		ArtistID:   artist.ID,
		Finance:    contract.Finance,
		Status:     models.ContractStatusActive,
		DeadlineAt: contract.DeadlineAt, GraceEndsAt: contract.GraceEndsAt,
	}
	assert.Error(t, env.db.Create(&second).Error)
}

func TestArtistAdjustmentRejectsNegativeAmounts(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	proposal := env.createProposal(t, client, artist, testSnapshot(), models.ProposalStatusPendingArtist)

	_, err := env.proposals.ArtistRespond(artist.ID, proposal.ID, &ArtistRespondRequest{
		Accept:   true,
		Discount: -5000,
		Reason:   "friend discount",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// The failed adjustment left the proposal untouched.
	got, err := env.proposals.GetProposal(client.ID, models.UserTypeClient, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusPendingArtist, got.Status)
	assert.Zero(t, got.Discount)
}
