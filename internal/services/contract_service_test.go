// internal/services/contract_service_test.go
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

func (e *testEnv) milestonesFor(t *testing.T, contractID uuid.UUID) []models.Milestone {
	t.Helper()
	var milestones []models.Milestone
	require.NoError(t, e.db.Where("contract_id = ?", contractID).Order("position ASC").Find(&milestones).Error)
	return milestones
}

func TestCreateFromProposal(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	proposal := env.createProposal(t, client, artist, milestoneSnapshot(), models.ProposalStatusAccepted)

	paidAt := time.Now().Truncate(time.Second)
	var contract *models.Contract
	err := env.db.Transaction(func(tx *gorm.DB) error {
		if err := env.proposals.MarkPaid(tx, proposal, paidAt); err != nil {
			return err
		}
		var err error
		contract, err = env.contracts.CreateFromProposal(tx, proposal, paidAt)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, models.ContractStatusActive, contract.Status)
	assert.Equal(t, "JPY", contract.Finance.Currency)
	assert.Equal(t, int64(100000), contract.Finance.Base)
	assert.Equal(t, int64(20000), contract.Finance.OptionFees)
	assert.Equal(t, int64(5000), contract.Finance.Addons)
	assert.Equal(t, int64(125000), contract.Finance.Total)
	assert.Zero(t, contract.Finance.RuntimeFees)

	assert.WithinDuration(t, paidAt.Add(30*24*time.Hour), contract.DeadlineAt, time.Second)
	assert.WithinDuration(t, contract.DeadlineAt.Add(7*24*time.Hour), contract.GraceEndsAt, time.Second)
	assert.Equal(t, 1, contract.CurrentTermsVersion)

	var terms models.ContractTerms
	require.NoError(t, env.db.First(&terms, "contract_id = ? AND version = ?", contract.ID, 1).Error)
	assert.Equal(t, proposal.Description, terms.Description)
	assert.Nil(t, terms.SourceTicketID)

	milestones := env.milestonesFor(t, contract.ID)
	require.Len(t, milestones, 3)
	assert.Equal(t, models.MilestoneStatusInProgress, milestones[0].Status)
	require.NotNil(t, milestones[0].StartedAt)
	assert.Equal(t, models.MilestoneStatusPending, milestones[1].Status)
	assert.Equal(t, models.MilestoneStatusPending, milestones[2].Status)
	assert.Equal(t, []int{30, 30, 40}, []int{milestones[0].Percent, milestones[1].Percent, milestones[2].Percent})
}

func TestSubmitUploadProgress(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, testSnapshot())

	for i := 0; i < 3; i++ {
		upload, err := env.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
			Kind:   models.UploadKindProgress,
			Images: []string{"https://cdn.example.com/wip.png"},
			Note:   "work in progress",
		})
		require.NoError(t, err)
		assert.Equal(t, models.UploadStatusPending, upload.Status)
	}
}

func TestSubmitUploadOnlyArtist(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, testSnapshot())

	_, err := env.contracts.SubmitUpload(client.ID, contract.ID, &SubmitUploadRequest{
		Kind:   models.UploadKindProgress,
		Images: []string{"https://cdn.example.com/wip.png"},
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeAuthorization))
}

func TestSubmitFinalUploadSingleflight(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, testSnapshot())

	_, err := env.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
		Kind:   models.UploadKindFinal,
		Images: []string{"https://cdn.example.com/final.png"},
	})
	require.NoError(t, err)

	// A second final while the first awaits review is refused.
	_, err = env.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
		Kind:   models.UploadKindFinal,
		Images: []string{"https://cdn.example.com/final_v2.png"},
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestResubmitFinalAfterRejection(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, testSnapshot())

	upload, err := env.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
		Kind:   models.UploadKindFinal,
		Images: []string{"https://cdn.example.com/final.png"},
	})
	require.NoError(t, err)

	reviewed, err := env.contracts.ReviewUpload(client.ID, upload.ID, &ReviewUploadRequest{
		Accept: false,
		Note:   "the background does not match the brief",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusActive, reviewed.Status)

	_, err = env.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
		Kind:   models.UploadKindFinal,
		Images: []string{"https://cdn.example.com/final_v2.png"},
	})
	assert.NoError(t, err)
}

func TestSubmitMilestoneUploadRules(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, milestoneSnapshot())
	milestones := env.milestonesFor(t, contract.ID)

	_, err := env.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
		Kind:   models.UploadKindMilestone,
		Images: []string{"https://cdn.example.com/sketch.png"},
	})
	assert.True(t, apperrors.IsValidation(err), "milestone upload without milestone_id")

	// A pending milestone cannot receive uploads yet.
	_, err = env.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
		Kind:        models.UploadKindMilestone,
		MilestoneID: &milestones[1].ID,
		Images:      []string{"https://cdn.example.com/lineart.png"},
	})
	assert.True(t, apperrors.IsIllegalTransition(err))

	upload, err := env.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
		Kind:        models.UploadKindMilestone,
		MilestoneID: &milestones[0].ID,
		Images:      []string{"https://cdn.example.com/sketch.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, milestones[0].ID, *upload.MilestoneID)
}

func TestSubmitRevisionUploadNeedsGrantedTicket(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, testSnapshot())

	ticket, err := env.tickets.OpenTicket(client.ID, contract.ID, &OpenTicketRequest{
		Type:        models.TicketTypeRevision,
		Description: "please adjust the character's pose",
	})
	require.NoError(t, err)

	// Still open: no revision work is owed yet.
	_, err = env.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
		Kind:     models.UploadKindRevision,
		TicketID: &ticket.ID,
		Images:   []string{"https://cdn.example.com/rev1.png"},
	})
	assert.True(t, apperrors.IsValidation(err))

	_, err = env.tickets.AcceptTicket(artist.ID, ticket.ID)
	require.NoError(t, err)

	upload, err := env.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
		Kind:     models.UploadKindRevision,
		TicketID: &ticket.ID,
		Images:   []string{"https://cdn.example.com/rev1.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, *upload.TicketID)
}

func TestAcceptFinalUploadCompletesContract(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, testSnapshot())

	upload, err := env.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
		Kind:   models.UploadKindFinal,
		Images: []string{"https://cdn.example.com/final.png"},
	})
	require.NoError(t, err)

	reviewed, err := env.contracts.ReviewUpload(client.ID, upload.ID, &ReviewUploadRequest{Accept: true})
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusCompleted, reviewed.Status)
	require.NotNil(t, reviewed.FinishedAt)
	assert.Equal(t, int64(125000), reviewed.Finance.TotalOwedArtist)
	assert.Zero(t, reviewed.Finance.TotalOwedClient)

	settlement := env.settlementFor(t, contract.ID)
	assert.Equal(t, models.ContractStatusCompleted, settlement.TerminalStatus)
	assert.Equal(t, int64(125000), settlement.ArtistAmount)
	assert.Zero(t, settlement.ClientAmount)
	assert.Zero(t, settlement.CancellationFee)

	// No further reviews once the upload left pending.
	_, err = env.contracts.ReviewUpload(client.ID, upload.ID, &ReviewUploadRequest{Accept: false})
	assert.True(t, apperrors.IsIllegalTransition(err))
}

func TestAcceptFinalUploadPastDeadlineCompletesLate(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, testSnapshot())

	upload, err := env.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
		Kind:   models.UploadKindFinal,
		Images: []string{"https://cdn.example.com/final.png"},
	})
	require.NoError(t, err)

	require.NoError(t, env.db.Model(&models.Contract{}).
		Where("id = ?", contract.ID).
		Update("deadline_at", time.Now().Add(-time.Hour)).Error)

	reviewed, err := env.contracts.ReviewUpload(client.ID, upload.ID, &ReviewUploadRequest{Accept: true})
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusCompletedLate, reviewed.Status)

	// Late completion still owes the artist the full total.
	settlement := env.settlementFor(t, contract.ID)
	assert.Equal(t, int64(125000), settlement.ArtistAmount)
}

func TestMilestoneFlowToCompletion(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, milestoneSnapshot())
	milestones := env.milestonesFor(t, contract.ID)

	expectedWork := []int{30, 60, 100}
	for i := range milestones {
		upload, err := env.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
			Kind:        models.UploadKindMilestone,
			MilestoneID: &milestones[i].ID,
			Images:      []string{"https://cdn.example.com/milestone.png"},
		})
		require.NoError(t, err)

		reviewed, err := env.contracts.ReviewUpload(client.ID, upload.ID, &ReviewUploadRequest{Accept: true})
		require.NoError(t, err)
		assert.Equal(t, expectedWork[i], reviewed.WorkPercentage)

		refreshed := env.milestonesFor(t, contract.ID)
		assert.Equal(t, models.MilestoneStatusAccepted, refreshed[i].Status)
		require.NotNil(t, refreshed[i].AcceptedAt)
		if i+1 < len(refreshed) {
			assert.Equal(t, models.MilestoneStatusInProgress, refreshed[i+1].Status)
			assert.Equal(t, models.ContractStatusActive, reviewed.Status)
		} else {
			// Accepting the last milestone delivers the commission in full.
			assert.Equal(t, models.ContractStatusCompleted, reviewed.Status)
		}
	}

	settlement := env.settlementFor(t, contract.ID)
	assert.Equal(t, int64(125000), settlement.ArtistAmount)
	assert.Equal(t, 100, settlement.WorkPercentage)
}

func TestFinalizeEntitlements(t *testing.T) {
	cases := []struct {
		name           string
		base           models.ContractStatus
		workPercentage int
		artistAmount   int64
		clientAmount   int64
		fee            int64
	}{
		{"client cancel pays work share plus fee", models.ContractStatusCancelledClient, 30, 47500, 77500, 10000},
		{"artist cancel pays work share only", models.ContractStatusCancelledArtist, 30, 37500, 87500, 0},
		{"client cancel at zero work still pays fee", models.ContractStatusCancelledClient, 0, 10000, 115000, 10000},
		{"artist entitlement is capped at total", models.ContractStatusCancelledClient, 100, 125000, 0, 10000},
		{"not completed refunds the client in full", models.ContractStatusNotCompleted, 60, 0, 125000, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			client := env.createUser(t, models.UserTypeClient)
			artist := env.createUser(t, models.UserTypeArtist)
			contract := env.createContract(t, client, artist, testSnapshot())

			require.NoError(t, env.db.Model(&models.Contract{}).
				Where("id = ?", contract.ID).
				Update("work_percentage", tc.workPercentage).Error)
			contract = env.reloadContract(t, contract.ID)

			err := env.db.Transaction(func(tx *gorm.DB) error {
				return env.contracts.Finalize(tx, contract, tc.base, time.Now())
			})
			require.NoError(t, err)

			settlement := env.settlementFor(t, contract.ID)
			assert.Equal(t, tc.base, settlement.TerminalStatus)
			assert.Equal(t, tc.artistAmount, settlement.ArtistAmount)
			assert.Equal(t, tc.clientAmount, settlement.ClientAmount)
			assert.Equal(t, tc.fee, settlement.CancellationFee)

			reloaded := env.reloadContract(t, contract.ID)
			assert.Equal(t, tc.base, reloaded.Status)
			assert.Equal(t, tc.artistAmount, reloaded.Finance.TotalOwedArtist)
			assert.Equal(t, tc.clientAmount, reloaded.Finance.TotalOwedClient)
		})
	}
}

func TestFinalizeExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, testSnapshot())

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.contracts.Finalize(tx, contract, models.ContractStatusCompleted, time.Now())
	})
	require.NoError(t, err)

	// A retried terminal transition finds the settlement row and no-ops.
	stale := *contract
	stale.Status = models.ContractStatusActive
	err = env.db.Transaction(func(tx *gorm.DB) error {
		return env.contracts.Finalize(tx, &stale, models.ContractStatusCancelledClient, time.Now())
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, env.db.Model(&models.Settlement{}).Where("contract_id = ?", contract.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, models.ContractStatusCompleted, env.settlementFor(t, contract.ID).TerminalStatus)
}

func TestFinalizeRequiresActiveContract(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, testSnapshot())

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.contracts.Finalize(tx, contract, models.ContractStatusCompleted, time.Now())
	})
	require.NoError(t, err)

	finished := env.reloadContract(t, contract.ID)
	err = env.db.Transaction(func(tx *gorm.DB) error {
		return env.contracts.Finalize(tx, finished, models.ContractStatusCancelledArtist, time.Now())
	})
	assert.True(t, apperrors.IsIllegalTransition(err))
}

func TestSubmitUploadOnFinishedContract(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, testSnapshot())

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.contracts.Finalize(tx, contract, models.ContractStatusCompleted, time.Now())
	})
	require.NoError(t, err)

	_, err = env.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
		Kind:   models.UploadKindProgress,
		Images: []string{"https://cdn.example.com/wip.png"},
	})
	assert.True(t, apperrors.IsIllegalTransition(err))
}

func TestAccrueRuntimeFees(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, testSnapshot())

	newDeadline := time.Now().Add(45 * 24 * time.Hour).Truncate(time.Second)
	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.contracts.AccrueRuntimeFees(tx, contract, 8000, &newDeadline, 2)
	})
	require.NoError(t, err)

	reloaded := env.reloadContract(t, contract.ID)
	assert.Equal(t, int64(8000), reloaded.Finance.RuntimeFees)
	assert.Equal(t, 2, reloaded.CurrentTermsVersion)
	assert.WithinDuration(t, newDeadline, reloaded.DeadlineAt, time.Second)
	assert.WithinDuration(t, newDeadline.Add(7*24*time.Hour), reloaded.GraceEndsAt, time.Second)
	// The frozen baseline never moves; runtime fees sit next to it.
	assert.Equal(t, int64(125000), reloaded.Finance.Total)
}

func TestGetContractPartyOnly(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	stranger := env.createUser(t, models.UserTypeClient)
	contract := env.createContract(t, client, artist, milestoneSnapshot())

	_, err := env.contracts.GetContract(stranger.ID, models.UserTypeClient, contract.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeAuthorization))

	got, err := env.contracts.GetContract(client.ID, models.UserTypeClient, contract.ID)
	require.NoError(t, err)
	assert.Len(t, got.Milestones, 3)
	assert.Len(t, got.Terms, 1)
}

func TestGetUploadPartyOnly(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	stranger := env.createUser(t, models.UserTypeArtist)
	contract := env.createContract(t, client, artist, testSnapshot())

	upload, err := env.contracts.SubmitUpload(artist.ID, contract.ID, &SubmitUploadRequest{
		Kind:   models.UploadKindProgress,
		Images: []string{"deliveries/20260830_abcd1234.png"},
	})
	require.NoError(t, err)

	_, err = env.contracts.GetUpload(stranger.ID, models.UserTypeArtist, upload.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeAuthorization))

	got, err := env.contracts.GetUpload(client.ID, models.UserTypeClient, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, upload.ID, got.ID)

	_, err = env.contracts.GetUpload(client.ID, models.UserTypeClient, uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListContractsScopedByRole(t *testing.T) {
	env := newTestEnv(t)
	client := env.createUser(t, models.UserTypeClient)
	artist := env.createUser(t, models.UserTypeArtist)
	otherClient := env.createUser(t, models.UserTypeClient)
	env.createContract(t, client, artist, testSnapshot())
	env.createContract(t, otherClient, artist, testSnapshot())

	params := &ContractSearchParams{}
	params.Page, params.Limit = 1, 20

	result, err := env.contracts.ListContracts(client.ID, models.UserTypeClient, params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)

	result, err = env.contracts.ListContracts(artist.ID, models.UserTypeArtist, params)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Total)
}
