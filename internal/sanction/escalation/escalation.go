// Package escalation is the single source of sanction policy: which tier an
// offense ordinal earns, what it does to the vehicle, and how long a
// suspension lasts. It has no dependencies on storage.
package escalation

import (
	"strconv"
	"time"

	"vehicle-sanctions/internal/sanction/models"
	dErrors "vehicle-sanctions/pkg/domain-errors"
)

// SuspensionWorkingDays is the length of a suspension.
const SuspensionWorkingDays = 30

// Decision is the consequence of one confirmed offense.
type Decision struct {
	SanctionType  models.SanctionType
	VehicleStatus models.RegistrationStatus
	// EndAt is set for suspensions only.
	EndAt *time.Time
}

// Policy evaluates weekdays in the institution's time zone.
type Policy struct {
	loc *time.Location
}

// NewPolicy returns a policy for loc; nil means UTC.
func NewPolicy(loc *time.Location) *Policy {
	if loc == nil {
		loc = time.UTC
	}
	return &Policy{loc: loc}
}

// Location is the zone weekdays are evaluated in.
func (p *Policy) Location() *time.Location {
	return p.loc
}

// Decide maps an offense ordinal to its sanction:
//
//	1   warning     warned     no end
//	2   suspension  suspended  now + 30 working days
//	3+  revocation  revoked    no end (permanent)
func (p *Policy) Decide(ordinal int, now time.Time) (Decision, error) {
	switch {
	case ordinal < 1:
		return Decision{}, dErrors.New(dErrors.CodeInvariantViolation,
			"offense ordinal must be at least 1, got "+strconv.Itoa(ordinal))
	case ordinal == 1:
		return Decision{
			SanctionType:  models.SanctionWarning,
			VehicleStatus: models.RegistrationWarned,
		}, nil
	case ordinal == 2:
		end := p.AddWorkingDays(now, SuspensionWorkingDays).UTC()
		return Decision{
			SanctionType:  models.SanctionSuspension,
			VehicleStatus: models.RegistrationSuspended,
			EndAt:         &end,
		}, nil
	default:
		return Decision{
			SanctionType:  models.SanctionRevocation,
			VehicleStatus: models.RegistrationRevoked,
		}, nil
	}
}

// AddWorkingDays walks forward one calendar day at a time from t, counting
// only Monday to Friday, and returns the instant reached after n of them.
// The wall clock time of t is kept.
func (p *Policy) AddWorkingDays(t time.Time, n int) time.Time {
	cur := t.In(p.loc)
	for added := 0; added < n; {
		cur = cur.AddDate(0, 0, 1)
		if isWorkingDay(cur) {
			added++
		}
	}
	return cur
}

// CountWorkingDays counts the working days stepped over between from and to,
// so that CountWorkingDays(t, AddWorkingDays(t, n)) == n. It is zero when to
// is not after from.
func (p *Policy) CountWorkingDays(from, to time.Time) int {
	count := 0
	cur := from.In(p.loc)
	for {
		next := cur.AddDate(0, 0, 1)
		if next.After(to) {
			return count
		}
		cur = next
		if isWorkingDay(cur) {
			count++
		}
	}
}

func isWorkingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
