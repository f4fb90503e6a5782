package issuance

import (
	"healthwallet/internal/holder/classify"
	"healthwallet/internal/holder/errorcode"
	"healthwallet/internal/holder/models"
	"healthwallet/internal/holder/viewstate"
)

var (
	toOverview = &viewstate.Action{Title: "To my overview", Kind: viewstate.ActionBackToOverview}
	addPaired  = &viewstate.Action{Title: "Add negative test", Kind: viewstate.ActionAddPairedResult}
	addAssess  = &viewstate.Action{Title: "Add vaccination assessment", Kind: viewstate.ActionAddPairedResult}
)

// EndStateView is the state an end state leads to. Continue shows nothing and returns to
// the overview.
func EndStateView(state classify.EndState, mode models.EventMode, flow errorcode.Flow) viewstate.State {
	if state == classify.Continue {
		return viewstate.Completed()
	}
	return viewstate.Feedback(EndStateContent(state, mode, flow))
}

// EndStateContent is the feedback screen for an end state other than Continue.
func EndStateContent(state classify.EndState, mode models.EventMode, flow errorcode.Flow) viewstate.Content {
	switch state {
	case classify.InternationalQROnly:
		return viewstate.Content{
			Title:         "Only an international certificate was created",
			Body:          "Your vaccination does not qualify for a domestic certificate. You can use the international certificate abroad.",
			PrimaryAction: toOverview,
		}
	case classify.RecoveryAndVaccinationCreated:
		return viewstate.Content{
			Title:         "Vaccination and recovery certificates created",
			Body:          "Your positive test result was earlier than your vaccination. Both certificates are in your overview.",
			PrimaryAction: toOverview,
		}
	case classify.RecoveryOnlyCreated:
		return viewstate.Content{
			Title:         "Recovery certificate created",
			Body:          "Your positive test result could not be combined with a vaccination.",
			PrimaryAction: toOverview,
		}
	case classify.VaccinationOnlyCreated:
		return viewstate.Content{
			Title:         "Vaccination certificate created",
			Body:          "No recovery certificate could be created from your positive test result.",
			PrimaryAction: toOverview,
		}
	case classify.PositiveTestTooOld:
		return viewstate.Content{
			Title:         "Your positive test is too old",
			Body:          "A recovery certificate cannot be created. Your vaccination certificate is still valid.",
			PrimaryAction: toOverview,
		}
	case classify.RecoveryTooOld:
		return viewstate.Content{
			Title:         "Your recovery is too long ago",
			Body:          "A recovery certificate is only valid for a limited time after your positive test.",
			PrimaryAction: toOverview,
		}
	case classify.AddAssessmentReminder:
		return viewstate.Content{
			Title:           "Only an international test certificate was created",
			Body:            "Add your vaccination assessment to get a domestic certificate.",
			PrimaryAction:   addAssess,
			SecondaryAction: toOverview,
		}
	case classify.AddNegativeTestReminder:
		return viewstate.Content{
			Title:           "Your vaccination assessment has been added",
			Body:            "Add a negative test result to get a certificate.",
			PrimaryAction:   addPaired,
			SecondaryAction: toOverview,
		}
	default:
		code := errorcode.New(flow, errorcode.StepSigner, errorcode.OriginMismatch)
		return viewstate.ErrorContent(mismatchTitle(mode), code.String())
	}
}

func mismatchTitle(mode models.EventMode) string {
	switch mode {
	case models.ModeTest:
		return "No test certificate could be created"
	case models.ModeRecovery, models.ModeVaccinationAndPositiveTest:
		return "No recovery certificate could be created"
	case models.ModeVaccinationAssessment:
		return "No visitor pass could be created"
	default:
		return "No vaccination certificate could be created"
	}
}
