package viewstate

import (
	"fmt"
	"strings"

	"healthwallet/internal/holder/models"
)

// Actions shared by the English copy below. Translation happens in the rendering layer.
var (
	backToOverview = &Action{Title: "Back to overview", Kind: ActionBackToOverview}
	makeQR         = &Action{Title: "Make certificate", Kind: ActionMakeQR}
	somethingWrong = &Action{Title: "Something wrong?", Kind: ActionSomethingWrong}
)

// LoadingContent is shown while a session fetches or issues.
func LoadingContent(mode models.EventMode) Content {
	return Content{Title: "Retrieving your " + noun(mode), Body: "This may take a moment."}
}

// ListContent heads the event list.
func ListContent(mode models.EventMode) Content {
	return Content{
		Title:           "Check your " + noun(mode),
		Body:            "Are these details correct? Then make your certificate.",
		PrimaryAction:   makeQR,
		SecondaryAction: somethingWrong,
	}
}

// PendingContent is shown when a test result is not available yet.
func PendingContent() Content {
	return Content{
		Title:         "Your test result is not yet known",
		Body:          "Please try again later. You will receive a message when the result is available.",
		PrimaryAction: backToOverview,
	}
}

// NoEventsContent is the mode-specific empty result.
func NoEventsContent(mode models.EventMode) Content {
	var title, body string
	switch mode {
	case models.ModeTest:
		title, body = "No negative test result available", "No negative test results were found in the last 7 days."
	case models.ModeRecovery:
		title, body = "No positive test result available", "No positive test results were found that can be used for a recovery certificate."
	case models.ModeVaccinationAndPositiveTest:
		title, body = "No positive test result available", "No positive test results or vaccinations were found."
	case models.ModeVaccinationAssessment:
		title, body = "No visitor pass available", "No vaccination assessment was found."
	case models.ModePaperflow:
		title, body = "No certificate available", "The scanned certificate could not be used."
	default:
		title, body = "No vaccinations available", "No vaccinations were found."
	}
	return Content{Title: title, Body: body, PrimaryAction: backToOverview}
}

// ErrorContent shows support codes after a failure.
func ErrorContent(title, errorCodes string) Content {
	return Content{
		Title:         title,
		Body:          "Something went wrong. Contact the helpdesk and mention: " + errorCodes,
		PrimaryAction: backToOverview,
	}
}

// ServerUnreachableContent is used when calls could not reach their servers.
func ServerUnreachableContent(errorCodes string) Content {
	return ErrorContent("Sorry, there was a problem", errorCodes)
}

// ServerBusyContent is used when every failed call answered 429.
func ServerBusyContent(errorCodes string) Content {
	return Content{
		Title:         "Network was busy",
		Body:          "The servers are busy. Try again later. Error codes: " + errorCodes,
		PrimaryAction: backToOverview,
	}
}

// SomethingWrongContent is the help text behind the secondary list action.
func SomethingWrongContent(mode models.EventMode) Content {
	return Content{
		Title: "Something wrong?",
		Body:  fmt.Sprintf("If your %s are not correct, contact the provider that registered them.", noun(mode)),
	}
}

// NoInternetAlert offers a retry.
func NoInternetAlert() Alert {
	return Alert{
		Title:        "No internet connection",
		Subtitle:     "Check your connection and try again.",
		OkTitle:      "Try again",
		OkAction:     ActionRetry,
		CancelTitle:  "Close",
		CancelAction: ActionCancel,
	}
}

// ServerBusyAlert offers a retry after a 429 during issuance.
func ServerBusyAlert(errorCode string) Alert {
	return Alert{
		Title:        "Network was busy",
		Subtitle:     "Try again later. Error code: " + errorCode,
		OkTitle:      "Try again",
		OkAction:     ActionRetry,
		CancelTitle:  "Close",
		CancelAction: ActionCancel,
	}
}

// IdentityMismatchAlert asks before replacing stored data with events for another person.
func IdentityMismatchAlert() Alert {
	return Alert{
		Title:        "Replace your details?",
		Subtitle:     "The details you retrieved belong to someone other than the certificates already in the app. Replace all stored certificates?",
		OkTitle:      "Replace",
		OkAction:     ActionReplace,
		CancelTitle:  "Cancel",
		CancelAction: ActionCancel,
	}
}

// PartialFailureAlert tells the user some providers could not be reached.
func PartialFailureAlert(errorCodes string) Alert {
	return Alert{
		Title:    "Not all details could be retrieved",
		Subtitle: "Some providers could not be reached. Error codes: " + errorCodes,
		OkTitle:  "Ok",
		OkAction: ActionContinue,
	}
}

// BackConfirmationAlert warns that retrieved events are discarded when leaving.
func BackConfirmationAlert() Alert {
	return Alert{
		Title:        "Are you sure you want to stop?",
		Subtitle:     "The retrieved details will not be saved.",
		OkTitle:      "Stop",
		OkAction:     ActionConfirmBack,
		CancelTitle:  "Cancel",
		CancelAction: ActionCancel,
	}
}

// RetrievedFrom labels a row with the providers that reported it.
func RetrievedFrom(providers []string) string {
	switch len(providers) {
	case 0:
		return ""
	case 1:
		return "Retrieved from " + providers[0]
	default:
		return "Retrieved from " + strings.Join(providers[:len(providers)-1], ", ") + " and " + providers[len(providers)-1]
	}
}

func noun(mode models.EventMode) string {
	switch mode {
	case models.ModeTest:
		return "test results"
	case models.ModeRecovery, models.ModeVaccinationAndPositiveTest:
		return "positive test results"
	case models.ModeVaccinationAssessment:
		return "vaccination assessment"
	case models.ModePaperflow:
		return "certificate"
	default:
		return "vaccinations"
	}
}

// VerificationRequiredContent asks for the code the test provider sent to the holder.
func VerificationRequiredContent() Content {
	return Content{
		Title: "Enter verification code",
		Body:  "Your test provider sent you a verification code. Enter it to retrieve your test result.",
	}
}
