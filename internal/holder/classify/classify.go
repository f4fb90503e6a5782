// Package classify maps a signer response onto the end state the holder sees after
// issuance. Every table is an explicit switch over a key of booleans so that each end
// state can be asserted from its literal inputs.
package classify

import (
	"time"

	"healthwallet/internal/holder/models"
)

// EndState is the terminal outcome of one issuance attempt.
type EndState string

const (
	Continue                      EndState = "continue"
	InternationalQROnly           EndState = "international_qr_only"
	RecoveryAndVaccinationCreated EndState = "recovery_and_vaccination_created"
	RecoveryOnlyCreated           EndState = "recovery_only_created"
	VaccinationOnlyCreated        EndState = "vaccination_only_created"
	PositiveTestTooOld            EndState = "positive_test_too_old"
	RecoveryTooOld                EndState = "recovery_too_old"
	AddAssessmentReminder         EndState = "add_assessment_reminder"
	AddNegativeTestReminder       EndState = "add_negative_test_reminder"
	OriginMismatch                EndState = "origin_mismatch"
)

// Input is everything the tables look at.
type Input struct {
	// Mode is the session mode after paper-flow expansion.
	Mode     models.EventMode
	Response *models.GreenCardResponse
	Now      time.Time
	// HeldDomesticVaccination: the wallet held a valid domestic vaccination card before signing.
	HeldDomesticVaccination bool
	// PositiveEventDates are the dates of recovery and positive-test events submitted.
	PositiveEventDates     []time.Time
	RecoveryExpirationDays int
}

// Classify selects the end state for in.
func Classify(in Input) EndState {
	switch in.Mode {
	case models.ModeVaccination:
		return classifyVaccination(in)
	case models.ModeVaccinationAndPositiveTest:
		return classifyPositiveTest(in)
	case models.ModeRecovery:
		return classifyRecovery(in)
	case models.ModeTest:
		return classifyTest(in)
	case models.ModeVaccinationAssessment:
		return classifyAssessment(in)
	default:
		return OriginMismatch
	}
}

type vaccinationKey struct {
	domestic      bool
	international bool
}

func classifyVaccination(in Input) EndState {
	key := vaccinationKey{
		domestic:      in.Response.HasDomesticOrigin(models.OriginVaccination, in.Now),
		international: in.Response.HasInternationalOrigin(models.OriginVaccination, in.Now),
	}
	switch key {
	case vaccinationKey{domestic: true, international: true},
		vaccinationKey{domestic: true, international: false}:
		return Continue
	case vaccinationKey{domestic: false, international: true}:
		return InternationalQROnly
	default:
		return OriginMismatch
	}
}

type positiveTestKey struct {
	vaccination   bool
	recovery      bool
	recoveryFirst bool
}

func classifyPositiveTest(in Input) EndState {
	key := positiveTestKey{
		vaccination: in.Response.HasOrigin(models.OriginVaccination, in.Now),
		recovery:    in.Response.HasOrigin(models.OriginRecovery, in.Now),
	}
	if key.vaccination && key.recovery {
		firstRecovery, _ := in.Response.EarliestEventTime(models.OriginRecovery, in.Now)
		firstVaccination, _ := in.Response.EarliestEventTime(models.OriginVaccination, in.Now)
		key.recoveryFirst = firstRecovery.Before(firstVaccination)
	}
	switch key {
	case positiveTestKey{vaccination: true, recovery: true, recoveryFirst: true}:
		return RecoveryAndVaccinationCreated
	case positiveTestKey{vaccination: true, recovery: true, recoveryFirst: false}:
		return Continue
	case positiveTestKey{vaccination: false, recovery: true}:
		return RecoveryOnlyCreated
	case positiveTestKey{vaccination: true, recovery: false}:
		return VaccinationOnlyCreated
	default:
		return OriginMismatch
	}
}

type recoveryKey struct {
	recovery    bool
	vaccination bool
	heldVacc    bool
	tooOld      bool
}

func classifyRecovery(in Input) EndState {
	key := recoveryKey{
		recovery:    in.Response.HasOrigin(models.OriginRecovery, in.Now),
		vaccination: in.Response.HasOrigin(models.OriginVaccination, in.Now),
	}
	switch {
	case key.recovery:
		// Continue regardless of the remaining fields.
	case key.vaccination:
		key.heldVacc = in.HeldDomesticVaccination
	default:
		key.tooOld = positiveEventsTooOld(in)
	}

	switch key {
	case recoveryKey{recovery: true, vaccination: false},
		recoveryKey{recovery: true, vaccination: true}:
		return Continue
	case recoveryKey{vaccination: true, heldVacc: true}:
		return PositiveTestTooOld
	case recoveryKey{vaccination: true, heldVacc: false}:
		return VaccinationOnlyCreated
	case recoveryKey{tooOld: true}:
		return RecoveryTooOld
	default:
		return OriginMismatch
	}
}

// positiveEventsTooOld reports whether every submitted positive event lies beyond the
// recovery validity window.
func positiveEventsTooOld(in Input) bool {
	if in.RecoveryExpirationDays <= 0 || len(in.PositiveEventDates) == 0 {
		return false
	}
	cutoff := in.Now.AddDate(0, 0, -in.RecoveryExpirationDays)
	for _, d := range in.PositiveEventDates {
		if !d.Before(cutoff) {
			return false
		}
	}
	return true
}

type testKey struct {
	domestic      bool
	international bool
	assessment    bool
}

func classifyTest(in Input) EndState {
	key := testKey{
		domestic:      in.Response.HasDomesticOrigin(models.OriginTest, in.Now),
		international: in.Response.HasInternationalOrigin(models.OriginTest, in.Now),
		assessment:    in.Response.HasOrigin(models.OriginVaccinationAssessment, in.Now),
	}
	switch key {
	case testKey{domestic: true, international: true, assessment: true},
		testKey{domestic: true, international: true, assessment: false},
		testKey{domestic: true, international: false, assessment: true},
		testKey{domestic: true, international: false, assessment: false},
		testKey{domestic: false, international: true, assessment: true}:
		return Continue
	case testKey{domestic: false, international: true, assessment: false}:
		return AddAssessmentReminder
	default:
		return OriginMismatch
	}
}

type assessmentKey struct {
	assessment bool
	test       bool
}

func classifyAssessment(in Input) EndState {
	key := assessmentKey{
		assessment: in.Response.HasOrigin(models.OriginVaccinationAssessment, in.Now),
		test:       in.Response.HasDomesticOrigin(models.OriginTest, in.Now),
	}
	switch key {
	case assessmentKey{assessment: true, test: true}:
		return Continue
	case assessmentKey{assessment: true, test: false}:
		return AddNegativeTestReminder
	default:
		return OriginMismatch
	}
}

// Evaluator returns the predicate the signer applies before accepting a response: at
// least one origin of a type mode expects must still be valid at now.
func Evaluator(mode models.EventMode, now time.Time) func(*models.GreenCardResponse) bool {
	return func(r *models.GreenCardResponse) bool {
		switch mode {
		case models.ModeVaccination:
			return r.HasOrigin(models.OriginVaccination, now)
		case models.ModeRecovery, models.ModeVaccinationAndPositiveTest:
			return r.HasOrigin(models.OriginRecovery, now) || r.HasOrigin(models.OriginVaccination, now)
		case models.ModeTest:
			return r.HasOrigin(models.OriginTest, now)
		case models.ModeVaccinationAssessment:
			return r.HasOrigin(models.OriginVaccinationAssessment, now)
		default:
			return false
		}
	}
}
