package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"vehicle-sanctions/internal/sanction/models"
)

type printer struct {
	w    io.Writer
	json bool

	ok    *color.Color
	warn  *color.Color
	faint *color.Color
}

func newPrinter(w io.Writer, asJSON bool) *printer {
	return &printer{
		w:     w,
		json:  asJSON,
		ok:    color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		faint: color.New(color.Faint),
	}
}

// emit writes v as JSON and reports whether it did.
func (p *printer) emit(v any) bool {
	if !p.json {
		return false
	}
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
	return true
}

func (p *printer) progress(processed, found int) string {
	c := p.ok
	if processed < found {
		c = p.warn
	}
	return c.Sprintf("%d/%d", processed, found)
}

func (p *printer) registrationSweep(r *models.RegistrationSweepReport) {
	if r == nil || p.emit(r) {
		return
	}
	fmt.Fprintf(p.w, "Registrations expired: %s\n", p.progress(r.ProcessedCount, r.Found))
	for _, d := range r.Details {
		fmt.Fprintf(p.w, "  %-24s %-12s was %s%s\n", d.VehicleID, d.PlateNumber, d.PreviousStatus,
			p.faint.Sprint(formatOptTime(" until ", d.ExpiredAt)))
	}
}

func (p *printer) sanctionSweep(r *models.SanctionSweepReport) {
	if r == nil || p.emit(r) {
		return
	}
	fmt.Fprintf(p.w, "Suspensions cleared: %s\n", p.progress(r.ProcessedCount, r.Found))
	for _, d := range r.Details {
		status := string(d.VehicleStatus)
		if status == "" {
			status = p.warn.Sprint("vehicle missing")
		}
		fmt.Fprintf(p.w, "  %-24s vehicle %-24s -> %s%s\n", d.SanctionID, d.VehicleID, status,
			p.faint.Sprint(formatOptTime(" ended ", d.EndAt)))
	}
}

func (p *printer) maintenance(r *models.MaintenanceReport) {
	if r == nil || p.emit(r) {
		return
	}
	p.registrationSweep(r.Registrations)
	p.sanctionSweep(r.Sanctions)
	fmt.Fprintln(p.w, p.faint.Sprintf("Completed in %s", r.Duration.Round(time.Millisecond)))
}

func (p *printer) upcoming(r *models.UpcomingExpirations) {
	if p.emit(r) {
		return
	}
	fmt.Fprintf(p.w, "Suspensions ending in the next %d days: %d\n", r.DaysAhead, r.Count)
	for _, s := range r.Sanctions {
		fmt.Fprintf(p.w, "  %-24s vehicle %-24s %s\n", s.ID, s.VehicleID,
			p.warn.Sprint(formatOptTime("ends ", s.EndAt)))
	}
}

func (p *printer) confirm(r *models.ConfirmResult) {
	if p.emit(r) {
		return
	}
	if r.AlreadyConfirmed {
		fmt.Fprintln(p.w, p.faint.Sprint("Violation was already confirmed; nothing changed."))
	}
	fmt.Fprintf(p.w, "Offense #%d on %s: %s (vehicle %s)%s\n",
		r.OffenseOrdinal, r.VehicleID, p.ok.Sprint(r.SanctionType), r.VehicleStatus,
		formatOptTime(", ends ", r.EndAt))
}

func (p *printer) resolve(r *models.ResolveResult) {
	if p.emit(r) {
		return
	}
	fmt.Fprintf(p.w, "Resolved %s active sanction(s) on %s\n", p.ok.Sprint(r.ResolvedCount), r.VehicleID)
}

func (p *printer) renew(r *models.RenewResult) {
	if p.emit(r) {
		return
	}
	fmt.Fprintf(p.w, "Renewed %s until %s\n", r.VehicleID, p.ok.Sprint(r.NewExpiryDate.Format(time.DateOnly)))
	fmt.Fprintf(p.w, "  violations cleared: %d\n  sanctions cleared:  %d\n", r.ViolationsCleared, r.SanctionsCleared)
}

func formatOptTime(prefix string, t *time.Time) string {
	if t == nil {
		return ""
	}
	return prefix + t.Format(time.DateOnly)
}
