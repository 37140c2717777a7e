// internal/services/service_test.go
package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/inkmarket/commission-backend/internal/config"
	"github.com/inkmarket/commission-backend/internal/models"
	"github.com/inkmarket/commission-backend/internal/pricing"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// A named shared in-memory database so every pooled connection sees the
	// same data; a fresh name per test keeps tests isolated.
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.Proposal{},
		&models.Contract{},
		&models.ContractTerms{},
		&models.Milestone{},
		&models.Upload{},
		&models.Ticket{},
		&models.Payment{},
		&models.Settlement{},
		&models.AuditLog{},
		&models.Notification{},
		&models.AdminNotification{},
	)
	require.NoError(t, err)
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			SecretKey:       "test-secret",
			AccessTokenTTL:  1,
			RefreshTokenTTL: 24,
		},
		Commission: config.CommissionConfig{
			ProposalTTLHours:     72,
			GraceDays:            7,
			CounterproofHours:    48,
			ChangeDeadlineLeadH:  48,
			SweepIntervalSeconds: 60,
		},
	}
}

type testEnv struct {
	db          *gorm.DB
	cfg         *config.Config
	proposals   *ProposalService
	contracts   *ContractService
	tickets     *TicketService
	resolutions *ResolutionService
	sweeper     *SweepService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	cfg := testConfig()
	notifications := NewNotificationService(db, cfg)
	contracts := NewContractService(db, cfg, notifications)
	tickets := NewTicketService(db, cfg, contracts, notifications)
	return &testEnv{
		db:          db,
		cfg:         cfg,
		proposals:   NewProposalService(db, cfg, notifications),
		contracts:   contracts,
		tickets:     tickets,
		resolutions: NewResolutionService(db, tickets, contracts, notifications),
		sweeper:     NewSweepService(db, cfg, contracts),
	}
}

func (e *testEnv) createUser(t *testing.T, userType models.UserType) *models.User {
	t.Helper()
	user := &models.User{
		Username: "u_" + uuid.NewString()[:8],
		Email:    uuid.NewString()[:8] + "@example.com",
		UserType: userType,
		Status:   models.UserStatusActive,
	}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, e.db.Create(user).Error)
	return user
}

// testSnapshot is a milestone-free commission: flat price, one option group,
// one addon, standard revisions, flat cancellation fee.
func testSnapshot() pricing.ListingSnapshot {
	return pricing.ListingSnapshot{
		Currency:  "JPY",
		BasePrice: 100000,
		OptionGroups: []pricing.OptionGroup{
			{ID: "background", Title: "Background", Choices: []pricing.OptionChoice{
				{ID: "simple", Label: "Simple", Price: 5000},
				{ID: "detailed", Label: "Detailed", Price: 20000},
			}},
		},
		Addons: []pricing.Addon{
			{ID: "commercial", Label: "Commercial use", Price: 5000},
		},
		Revisions: pricing.RevisionPolicy{
			Mode:             pricing.RevisionStandard,
			FreeRevisions:    2,
			ExtraRevisionFee: 3000,
		},
		Deadline: pricing.DeadlinePolicy{MinDays: 14, MaxDays: 60},
		Cancellation: pricing.CancellationPolicy{
			Mode: pricing.CancellationFeeFlat,
			Fee:  10000,
		},
		Changeable: pricing.ChangeableAspects{
			Deadline:       true,
			Description:    true,
			GeneralOptions: true,
		},
	}
}

// milestoneSnapshot splits delivery into sketch/lineart/final at 30/30/40.
func milestoneSnapshot() pricing.ListingSnapshot {
	s := testSnapshot()
	s.Milestones = []pricing.MilestoneDefinition{
		{Title: "Sketch", Percent: 30, Revisions: pricing.RevisionPolicy{FreeRevisions: 1, ExtraRevisionFee: 2000}},
		{Title: "Lineart", Percent: 30, Revisions: pricing.RevisionPolicy{FreeRevisions: 1, ExtraRevisionFee: 2000}},
		{Title: "Final", Percent: 40, Revisions: pricing.RevisionPolicy{FreeRevisions: 1, ExtraRevisionFee: 2000}},
	}
	return s
}

func testSelection() pricing.Selection {
	return pricing.Selection{
		ChosenDays: 30,
		Items: []pricing.SelectionItem{
			{Kind: pricing.KindOptionGroup, GroupID: "background", ChoiceID: "detailed"},
			{Kind: pricing.KindAddon, AddonID: "commercial"},
		},
	}
}

func (e *testEnv) createListing(t *testing.T, artistID uuid.UUID, snapshot pricing.ListingSnapshot) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		ArtistID: artistID,
		Title:    "Character illustration",
		Snapshot: snapshot,
		Active:   true,
	}
	require.NoError(t, e.db.Create(listing).Error)
	return listing
}

// createProposal runs the negotiation to the given status through the service
// layer so every row carries real service-produced state.
func (e *testEnv) createProposal(t *testing.T, client, artist *models.User, snapshot pricing.ListingSnapshot, status models.ProposalStatus) *models.Proposal {
	t.Helper()
	listing := e.createListing(t, artist.ID, snapshot)
	proposal, err := e.proposals.CreateProposal(client.ID, &CreateProposalRequest{
		ListingID:   listing.ID,
		Selection:   testSelection(),
		Description: "A full-body character commission",
	})
	require.NoError(t, err)
	if status == models.ProposalStatusPendingArtist {
		return proposal
	}

	proposal, err = e.proposals.ArtistRespond(artist.ID, proposal.ID, &ArtistRespondRequest{Accept: true})
	require.NoError(t, err)
	if status == models.ProposalStatusPendingClient {
		return proposal
	}

	proposal, err = e.proposals.ClientRespond(client.ID, proposal.ID, &ClientRespondRequest{Accept: true})
	require.NoError(t, err)
	require.Equal(t, models.ProposalStatusAccepted, proposal.Status)
	return proposal
}

// createContract pays an accepted proposal and materializes the contract.
func (e *testEnv) createContract(t *testing.T, client, artist *models.User, snapshot pricing.ListingSnapshot) *models.Contract {
	t.Helper()
	proposal := e.createProposal(t, client, artist, snapshot, models.ProposalStatusAccepted)

	paidAt := time.Now()
	var contract *models.Contract
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := e.proposals.MarkPaid(tx, proposal, paidAt); err != nil {
			return err
		}
		var err error
		contract, err = e.contracts.CreateFromProposal(tx, proposal, paidAt)
		return err
	})
	require.NoError(t, err)
	return contract
}

func (e *testEnv) reloadContract(t *testing.T, id uuid.UUID) *models.Contract {
	t.Helper()
	var contract models.Contract
	require.NoError(t, e.db.First(&contract, "id = ?", id).Error)
	return &contract
}

func (e *testEnv) reloadTicket(t *testing.T, id uuid.UUID) *models.Ticket {
	t.Helper()
	var ticket models.Ticket
	require.NoError(t, e.db.First(&ticket, "id = ?", id).Error)
	return &ticket
}

func (e *testEnv) settlementFor(t *testing.T, contractID uuid.UUID) *models.Settlement {
	t.Helper()
	var settlement models.Settlement
	require.NoError(t, e.db.First(&settlement, "contract_id = ?", contractID).Error)
	return &settlement
}
