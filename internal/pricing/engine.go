// internal/pricing/engine.go
package pricing

import (
	"fmt"

	"github.com/inkmarket/commission-backend/internal/apperrors"
)

// ComputePrice produces the authoritative price breakdown for a selection
// against a frozen listing snapshot. It is pure and idempotent: both the
// client-facing preview and the final commit call it, so the two can never
// diverge. The optional adjustment carries the artist's surcharge/discount.
func ComputePrice(snapshot ListingSnapshot, selection Selection, adjustment *Adjustment) (*PriceBreakdown, error) {
	breakdown := &PriceBreakdown{
		Currency: snapshot.Currency,
		Base:     snapshot.BasePrice,
	}

	optionTotal, addonTotal, err := priceItems(snapshot.OptionGroups, snapshot.Addons, snapshot.Questions, selection.Items, "items")
	if err != nil {
		return nil, err
	}
	breakdown.OptionGroups = optionTotal
	breakdown.Addons = addonTotal

	if err := priceSubjects(snapshot, selection, breakdown); err != nil {
		return nil, err
	}

	rushFee, rushedDays, err := rushFee(snapshot.Deadline, selection.ChosenDays)
	if err != nil {
		return nil, err
	}
	breakdown.RushFee = rushFee
	breakdown.RushedDays = rushedDays

	if adjustment != nil {
		if adjustment.Surcharge < 0 || adjustment.Discount < 0 {
			return nil, apperrors.Validation("adjustment amounts must not be negative")
		}
		breakdown.Surcharge = adjustment.Surcharge
		breakdown.Discount = adjustment.Discount
	}

	breakdown.Total = breakdown.ComponentSum()
	return breakdown, nil
}

func priceItems(groups []OptionGroup, addons []Addon, questions []Question, items []SelectionItem, fieldPrefix string) (optionTotal, addonTotal int64, err error) {
	seenGroups := make(map[string]bool)
	seenAddons := make(map[string]bool)

	for i, item := range items {
		field := fmt.Sprintf("%s[%d]", fieldPrefix, i)
		switch item.Kind {
		case KindOptionGroup:
			group := findGroup(groups, item.GroupID)
			if group == nil {
				return 0, 0, apperrors.SelectionInvalid(field+".group_id", fmt.Sprintf("option group %q is not part of this listing", item.GroupID))
			}
			if seenGroups[item.GroupID] {
				return 0, 0, apperrors.SelectionInvalid(field+".group_id", fmt.Sprintf("option group %q selected more than once", item.GroupID))
			}
			seenGroups[item.GroupID] = true
			choice := findChoice(group.Choices, item.ChoiceID)
			if choice == nil {
				return 0, 0, apperrors.SelectionInvalid(field+".choice_id", fmt.Sprintf("choice %q is not part of option group %q", item.ChoiceID, item.GroupID))
			}
			optionTotal += choice.Price
		case KindAddon:
			addon := findAddon(addons, item.AddonID)
			if addon == nil {
				return 0, 0, apperrors.SelectionInvalid(field+".addon_id", fmt.Sprintf("addon %q is not part of this listing", item.AddonID))
			}
			if seenAddons[item.AddonID] {
				return 0, 0, apperrors.SelectionInvalid(field+".addon_id", fmt.Sprintf("addon %q toggled more than once", item.AddonID))
			}
			seenAddons[item.AddonID] = true
			addonTotal += addon.Price
		case KindAnswer:
			if findQuestion(questions, item.QuestionID) == nil {
				return 0, 0, apperrors.SelectionInvalid(field+".question_id", fmt.Sprintf("question %q is not part of this listing", item.QuestionID))
			}
		default:
			return 0, 0, apperrors.SelectionInvalid(field+".kind", fmt.Sprintf("unknown selection kind %q", item.Kind))
		}
	}

	for _, q := range questions {
		if !q.Required {
			continue
		}
		answered := false
		for _, item := range items {
			if item.Kind == KindAnswer && item.QuestionID == q.ID && item.Answer != "" {
				answered = true
				break
			}
		}
		if !answered {
			return 0, 0, apperrors.SelectionInvalid(fieldPrefix, fmt.Sprintf("question %q requires an answer", q.ID))
		}
	}

	return optionTotal, addonTotal, nil
}

func priceSubjects(snapshot ListingSnapshot, selection Selection, breakdown *PriceBreakdown) error {
	for si, subjectSel := range selection.Subjects {
		field := fmt.Sprintf("subjects[%d]", si)
		def := findSubject(snapshot.Subjects, subjectSel.SubjectID)
		if def == nil {
			return apperrors.SelectionInvalid(field+".subject_id", fmt.Sprintf("subject %q is not part of this listing", subjectSel.SubjectID))
		}
		if len(subjectSel.Instances) == 0 {
			return apperrors.SelectionInvalid(field+".instances", fmt.Sprintf("subject %q selected with zero instances", def.ID))
		}
		if def.InstanceLimit == 0 {
			return apperrors.SelectionInvalid(field+".instances", fmt.Sprintf("subject %q does not allow instances", def.ID))
		}
		if def.InstanceLimit != UnboundedInstances && len(subjectSel.Instances) > def.InstanceLimit {
			return apperrors.SelectionInvalid(field+".instances",
				fmt.Sprintf("subject %q allows at most %d instances, got %d", def.ID, def.InstanceLimit, len(subjectSel.Instances)))
		}

		sub := SubjectBreakdown{SubjectID: def.ID, Title: def.Title}
		for ii, instance := range subjectSel.Instances {
			instanceField := fmt.Sprintf("%s.instances[%d].items", field, ii)
			optionTotal, addonTotal, err := priceItems(def.OptionGroups, def.Addons, def.Questions, instance.Items, instanceField)
			if err != nil {
				return err
			}
			undiscounted := def.BasePrice + optionTotal + addonTotal

			// The multi-instance discount applies to every instance whose
			// index within this subject is >= 1.
			entry := InstanceBreakdown{Index: ii, Undiscounted: undiscounted, Discounted: undiscounted}
			if ii >= 1 && def.DiscountPercent > 0 {
				entry.Discounted = roundPercentOf(undiscounted, 100-def.DiscountPercent)
				entry.DiscountApplied = true
			}
			sub.Instances = append(sub.Instances, entry)
			sub.Subtotal += entry.Discounted
		}
		breakdown.Subjects = append(breakdown.Subjects, sub)
		breakdown.SubjectsTotal += sub.Subtotal
	}
	return nil
}

func rushFee(policy DeadlinePolicy, chosenDays int) (fee int64, rushedDays int, err error) {
	if chosenDays <= 0 {
		return 0, 0, apperrors.SelectionInvalid("chosen_days", "deadline must be at least one day out")
	}
	if policy.MaxDays > 0 && chosenDays > policy.MaxDays {
		return 0, 0, apperrors.SelectionInvalid("chosen_days",
			fmt.Sprintf("deadline of %d days exceeds the listing maximum of %d", chosenDays, policy.MaxDays))
	}
	if chosenDays >= policy.MinDays {
		return 0, 0, nil
	}
	if policy.RushFeeMode == "" {
		return 0, 0, apperrors.SelectionInvalid("chosen_days",
			fmt.Sprintf("deadline of %d days is under the listing minimum of %d and the listing offers no rush option", chosenDays, policy.MinDays))
	}
	if policy.RushMinDays > 0 && chosenDays < policy.RushMinDays {
		return 0, 0, apperrors.SelectionInvalid("chosen_days",
			fmt.Sprintf("deadline of %d days is under the rush minimum of %d", chosenDays, policy.RushMinDays))
	}
	rushedDays = policy.MinDays - chosenDays
	switch policy.RushFeeMode {
	case RushFeeFlat:
		return policy.RushFee, rushedDays, nil
	case RushFeePerDay:
		return policy.RushFee * int64(rushedDays), rushedDays, nil
	default:
		return 0, 0, apperrors.SelectionInvalid("chosen_days", fmt.Sprintf("unknown rush fee mode %q", policy.RushFeeMode))
	}
}

// roundPercentOf computes round(amount * pct / 100) in integer minor units,
// rounding half away from zero.
func roundPercentOf(amount int64, pct int) int64 {
	product := amount * int64(pct)
	if product >= 0 {
		return (product + 50) / 100
	}
	return (product - 50) / 100
}

// CancellationFee resolves the listing's cancellation-fee policy against a
// contract total.
func CancellationFee(policy CancellationPolicy, total int64) int64 {
	switch policy.Mode {
	case CancellationFeeFlat:
		return policy.Fee
	case CancellationFeePercent:
		return roundPercentOf(total, policy.Percent)
	default:
		return 0
	}
}

// WorkShare computes the portion of a total covered by accepted work,
// rounded to the minor unit.
func WorkShare(total int64, workPercent int) int64 {
	if workPercent <= 0 {
		return 0
	}
	if workPercent >= 100 {
		return total
	}
	return roundPercentOf(total, workPercent)
}

func findGroup(groups []OptionGroup, id string) *OptionGroup {
	for i := range groups {
		if groups[i].ID == id {
			return &groups[i]
		}
	}
	return nil
}

func findChoice(choices []OptionChoice, id string) *OptionChoice {
	for i := range choices {
		if choices[i].ID == id {
			return &choices[i]
		}
	}
	return nil
}

func findAddon(addons []Addon, id string) *Addon {
	for i := range addons {
		if addons[i].ID == id {
			return &addons[i]
		}
	}
	return nil
}

func findQuestion(questions []Question, id string) *Question {
	for i := range questions {
		if questions[i].ID == id {
			return &questions[i]
		}
	}
	return nil
}

func findSubject(subjects []SubjectDefinition, id string) *SubjectDefinition {
	for i := range subjects {
		if subjects[i].ID == id {
			return &subjects[i]
		}
	}
	return nil
}
