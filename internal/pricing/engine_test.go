// internal/pricing/engine_test.go
package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkmarket/commission-backend/internal/apperrors"
)

func fullBodySnapshot() ListingSnapshot {
	return ListingSnapshot{
		Currency:  "JPY",
		BasePrice: 100000,
		OptionGroups: []OptionGroup{
			{
				ID:    "background",
				Title: "Background",
				Choices: []OptionChoice{
					{ID: "plain", Label: "Plain", Price: 0},
					{ID: "detailed", Label: "Detailed", Price: 20000},
				},
			},
		},
		Addons: []Addon{
			{ID: "commercial", Label: "Commercial use", Price: 5000},
		},
		Deadline: DeadlinePolicy{MinDays: 14, MaxDays: 60},
	}
}

func characterSnapshot() ListingSnapshot {
	return ListingSnapshot{
		Currency: "JPY",
		Subjects: []SubjectDefinition{
			{
				ID:        "character",
				Title:     "Character",
				BasePrice: 40000,
				OptionGroups: []OptionGroup{
					{
						ID:    "pose",
						Title: "Pose",
						Choices: []OptionChoice{
							{ID: "bust", Label: "Bust", Price: 10000},
							{ID: "full", Label: "Full body", Price: 10000},
						},
					},
				},
				InstanceLimit:   3,
				DiscountPercent: 10,
			},
		},
		Deadline: DeadlinePolicy{MinDays: 14, MaxDays: 60},
	}
}

func TestComputePriceOptionAndAddon(t *testing.T) {
	snapshot := fullBodySnapshot()
	selection := Selection{
		ChosenDays: 30,
		Items: []SelectionItem{
			{Kind: KindOptionGroup, GroupID: "background", ChoiceID: "detailed"},
			{Kind: KindAddon, AddonID: "commercial"},
		},
	}

	breakdown, err := ComputePrice(snapshot, selection, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(100000), breakdown.Base)
	assert.Equal(t, int64(20000), breakdown.OptionGroups)
	assert.Equal(t, int64(5000), breakdown.Addons)
	assert.Equal(t, int64(125000), breakdown.Total)
	assert.Equal(t, breakdown.Total, breakdown.ComponentSum())
}

func TestComputePriceSubjectInstanceDiscount(t *testing.T) {
	snapshot := characterSnapshot()
	selection := Selection{
		ChosenDays: 30,
		Subjects: []SubjectSelection{
			{
				SubjectID: "character",
				Instances: []SubjectInstance{
					{Items: []SelectionItem{{Kind: KindOptionGroup, GroupID: "pose", ChoiceID: "full"}}},
					{Items: []SelectionItem{{Kind: KindOptionGroup, GroupID: "pose", ChoiceID: "full"}}},
				},
			},
		},
	}

	breakdown, err := ComputePrice(snapshot, selection, nil)
	require.NoError(t, err)

	require.Len(t, breakdown.Subjects, 1)
	instances := breakdown.Subjects[0].Instances
	require.Len(t, instances, 2)

	// First instance at full price, second gets the 10% multi-instance discount.
	assert.Equal(t, int64(50000), instances[0].Discounted)
	assert.False(t, instances[0].DiscountApplied)
	assert.Equal(t, int64(45000), instances[1].Discounted)
	assert.True(t, instances[1].DiscountApplied)

	assert.Equal(t, int64(95000), breakdown.SubjectsTotal)
	assert.Equal(t, int64(95000), breakdown.Total)
}

func TestComputePriceDeterministic(t *testing.T) {
	snapshot := fullBodySnapshot()
	selection := Selection{
		ChosenDays: 30,
		Items: []SelectionItem{
			{Kind: KindOptionGroup, GroupID: "background", ChoiceID: "detailed"},
		},
	}

	first, err := ComputePrice(snapshot, selection, nil)
	require.NoError(t, err)
	second, err := ComputePrice(snapshot, selection, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputePriceAdjustment(t *testing.T) {
	snapshot := fullBodySnapshot()
	selection := Selection{ChosenDays: 30}

	breakdown, err := ComputePrice(snapshot, selection, &Adjustment{Surcharge: 15000, Discount: 5000})
	require.NoError(t, err)
	assert.Equal(t, int64(110000), breakdown.Total)

	_, err = ComputePrice(snapshot, selection, &Adjustment{Discount: -1})
	assert.True(t, apperrors.IsValidation(err))
}

func TestComputePriceRushFee(t *testing.T) {
	snapshot := fullBodySnapshot()
	snapshot.Deadline = DeadlinePolicy{
		MinDays:     14,
		MaxDays:     60,
		RushFeeMode: RushFeePerDay,
		RushFee:     3000,
		RushMinDays: 7,
	}

	breakdown, err := ComputePrice(snapshot, Selection{ChosenDays: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, breakdown.RushedDays)
	assert.Equal(t, int64(12000), breakdown.RushFee)
	assert.Equal(t, int64(112000), breakdown.Total)

	// Faster than the rush floor is rejected outright.
	_, err = ComputePrice(snapshot, Selection{ChosenDays: 5}, nil)
	assert.True(t, apperrors.IsSelectionInvalid(err))

	// Without a rush option any deadline under MinDays is invalid.
	snapshot.Deadline.RushFeeMode = ""
	_, err = ComputePrice(snapshot, Selection{ChosenDays: 10}, nil)
	assert.True(t, apperrors.IsSelectionInvalid(err))
}

func TestComputePriceRejectsUnknownSelections(t *testing.T) {
	snapshot := fullBodySnapshot()

	cases := []struct {
		name  string
		items []SelectionItem
	}{
		{"unknown group", []SelectionItem{{Kind: KindOptionGroup, GroupID: "frame", ChoiceID: "gold"}}},
		{"unknown choice", []SelectionItem{{Kind: KindOptionGroup, GroupID: "background", ChoiceID: "holographic"}}},
		{"unknown addon", []SelectionItem{{Kind: KindAddon, AddonID: "nft"}}},
		{"duplicate group", []SelectionItem{
			{Kind: KindOptionGroup, GroupID: "background", ChoiceID: "plain"},
			{Kind: KindOptionGroup, GroupID: "background", ChoiceID: "detailed"},
		}},
		{"unknown kind", []SelectionItem{{Kind: "bundle"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputePrice(snapshot, Selection{ChosenDays: 30, Items: tc.items}, nil)
			assert.True(t, apperrors.IsSelectionInvalid(err))
		})
	}
}

func TestComputePriceRequiredQuestion(t *testing.T) {
	snapshot := fullBodySnapshot()
	snapshot.Questions = []Question{{ID: "refs", Prompt: "Reference sheet link?", Required: true}}

	_, err := ComputePrice(snapshot, Selection{ChosenDays: 30}, nil)
	assert.True(t, apperrors.IsSelectionInvalid(err))

	selection := Selection{
		ChosenDays: 30,
		Items:      []SelectionItem{{Kind: KindAnswer, QuestionID: "refs", Answer: "https://example.com/sheet"}},
	}
	_, err = ComputePrice(snapshot, selection, nil)
	assert.NoError(t, err)
}

func TestComputePriceInstanceLimit(t *testing.T) {
	snapshot := characterSnapshot()
	instances := make([]SubjectInstance, 4)
	for i := range instances {
		instances[i] = SubjectInstance{Items: []SelectionItem{{Kind: KindOptionGroup, GroupID: "pose", ChoiceID: "bust"}}}
	}

	_, err := ComputePrice(snapshot, Selection{
		ChosenDays: 30,
		Subjects:   []SubjectSelection{{SubjectID: "character", Instances: instances}},
	}, nil)
	assert.True(t, apperrors.IsSelectionInvalid(err))

	// Unbounded subjects take any count.
	snapshot.Subjects[0].InstanceLimit = UnboundedInstances
	breakdown, err := ComputePrice(snapshot, Selection{
		ChosenDays: 30,
		Subjects:   []SubjectSelection{{SubjectID: "character", Instances: instances}},
	}, nil)
	require.NoError(t, err)
	assert.Len(t, breakdown.Subjects[0].Instances, 4)
}

func TestRoundPercentOfHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, int64(1), roundPercentOf(1, 50))    // 0.5 rounds up
	assert.Equal(t, int64(-1), roundPercentOf(-1, 50))  // -0.5 rounds away from zero
	assert.Equal(t, int64(33), roundPercentOf(333, 10)) // 33.3 rounds down
	assert.Equal(t, int64(34), roundPercentOf(335, 10)) // 33.5 rounds up
}

func TestCancellationFee(t *testing.T) {
	assert.Equal(t, int64(5000), CancellationFee(CancellationPolicy{Mode: CancellationFeeFlat, Fee: 5000}, 100000))
	assert.Equal(t, int64(20000), CancellationFee(CancellationPolicy{Mode: CancellationFeePercent, Percent: 20}, 100000))
	assert.Equal(t, int64(0), CancellationFee(CancellationPolicy{}, 100000))
}

func TestWorkShare(t *testing.T) {
	assert.Equal(t, int64(0), WorkShare(100000, 0))
	assert.Equal(t, int64(30000), WorkShare(100000, 30))
	assert.Equal(t, int64(100000), WorkShare(100000, 100))
	assert.Equal(t, int64(100000), WorkShare(100000, 120))
}

func TestSnapshotValidateMilestoneSum(t *testing.T) {
	snapshot := fullBodySnapshot()
	snapshot.Milestones = []MilestoneDefinition{
		{Title: "Sketch", Percent: 30},
		{Title: "Lineart", Percent: 30},
		{Title: "Final", Percent: 30},
	}
	assert.Error(t, snapshot.Validate())

	snapshot.Milestones[2].Percent = 40
	assert.NoError(t, snapshot.Validate())
}
