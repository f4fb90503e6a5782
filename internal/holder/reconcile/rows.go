package reconcile

import (
	"fmt"
	"time"

	"healthwallet/internal/holder/dcc"
	"healthwallet/internal/holder/models"
	"healthwallet/internal/holder/viewstate"
)

const displayDate = "2 January 2006"

// Rows builds one display row per item. DCC events are decoded to tell foreign
// certificates from domestic ones.
func Rows(items []Item, reader dcc.CredentialReader) []viewstate.Row {
	rows := make([]viewstate.Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, row(item, reader))
	}
	return rows
}

func row(item Item, reader dcc.CredentialReader) viewstate.Row {
	primary := item.Primary()
	providers := item.Providers()
	details := make([]viewstate.Detail, 0, len(item.Tuples))
	for _, t := range item.Tuples {
		details = append(details, viewstate.Detail{
			ProviderIdentifier: t.ProviderIdentifier,
			Identity:           t.Identity,
			Event:              t.Event,
		})
	}

	r := viewstate.Row{Providers: providers, Details: details}
	name := ""
	if primary.Identity != nil {
		name = primary.Identity.FullName()
	}

	switch p := primary.Event.Payload.(type) {
	case *models.Vaccination:
		r.Title = "Vaccination"
		if p.DoseNumber > 0 && p.TotalDoses > 0 {
			r.Title = fmt.Sprintf("Vaccination (%d/%d)", p.DoseNumber, p.TotalDoses)
		}
		r.Subtitle = subtitle(name, primary.Date(), viewstate.RetrievedFrom(providers))
	case *models.NegativeTest:
		r.Title = "Negative test"
		r.Subtitle = subtitle(name, primary.Date(), viewstate.RetrievedFrom(providers))
	case *models.PositiveTest:
		r.Title = "Positive test"
		r.Subtitle = subtitle(name, primary.Date(), viewstate.RetrievedFrom(providers))
	case *models.Recovery:
		r.Title = "Recovery"
		r.Subtitle = subtitle(name, primary.Date(), viewstate.RetrievedFrom(providers))
	case *models.VaccinationAssessment:
		r.Title = "Vaccination assessment"
		r.Subtitle = subtitle(name, primary.Date(), viewstate.RetrievedFrom(providers))
	case *models.DCC:
		r.Title, r.Subtitle, r.Footer = dccRow(p, reader)
	}
	return r
}

func dccRow(p *models.DCC, reader dcc.CredentialReader) (title, sub, footer string) {
	if reader == nil {
		return "International certificate", "", ""
	}
	c, err := reader.ReadEuCredential([]byte(p.Credential))
	if err != nil {
		return "International certificate", "", ""
	}
	mode, _ := dcc.ModeFor(c)
	switch mode {
	case models.ModeVaccination:
		title = "Vaccination"
	case models.ModeRecovery:
		title = "Recovery"
	case models.ModeTest:
		title = "Test"
	default:
		title = "International certificate"
	}
	id := c.Identity()
	date, _ := c.EventDate()
	sub = subtitle(id.FullName(), date, "")
	if reader.IsForeignDCC([]byte(p.Credential)) {
		footer = "This certificate was issued abroad."
	}
	return title, sub, footer
}

func subtitle(name string, date time.Time, source string) string {
	s := ""
	if name != "" {
		s = "Name: " + name
	}
	if !date.IsZero() {
		if s != "" {
			s += "\n"
		}
		s += "Date: " + date.Format(displayDate)
	}
	if source != "" {
		if s != "" {
			s += "\n"
		}
		s += source
	}
	return s
}
