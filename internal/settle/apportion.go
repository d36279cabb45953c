package settle

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sharex-union/sharex/internal/refdata"
	"github.com/sharex-union/sharex/internal/settle/fx"
)

func newConverter(snap *refdata.Snapshot) *fx.Converter {
	return fx.NewConverter(snap.Currency, snap.Rates)
}

// ownershipEpsilon bounds the allowed deviation of a course's ownership
// fraction sum from 1. Outside it revenue would silently be lost or double
// counted, so the run aborts.
var ownershipEpsilon = decimal.New(1, -6)

// Apportion turns classified cost lines plus course revenue into one ledger
// entry per course per owning partner. Cost lines are converted into the
// settlement currency per line, before summation. The returned slice is
// ordered by course input order then partner id, so identical inputs yield
// byte-identical output.
func Apportion(in Input, classifier *Classifier, conv *fx.Converter) ([]LedgerEntry, error) {
	if err := checkCourses(in); err != nil {
		return nil, err
	}

	directByCourse := make(map[string]map[string]decimal.Decimal)
	directUnattributed := make(map[string]decimal.Decimal)
	indirectPool := decimal.Zero

	courseIndex := make(map[string]Course, len(in.Courses))
	for _, course := range in.Courses {
		courseIndex[course.ID] = course
	}

	for _, line := range in.CostLines {
		if line.ID == "" {
			return nil, inputErrorf(in.Period, line.Label, "cost line has no id")
		}
		amount, err := conv.ToSettlement(line.Amount, line.Currency, line.Month)
		if err != nil {
			return nil, configErrorf(in.Period, "rate", line.ID, "%v", err)
		}
		cls := classifier.Classify(line)
		if cls.Kind == KindIndirect {
			indirectPool = indirectPool.Add(amount)
			continue
		}
		if line.CourseID == "" {
			directUnattributed[cls.CompanyID] = directUnattributed[cls.CompanyID].Add(amount)
			continue
		}
		if _, ok := courseIndex[line.CourseID]; !ok {
			return nil, inputErrorf(in.Period, line.ID, "cost line references unknown course %s", line.CourseID)
		}
		perPartner := directByCourse[line.CourseID]
		if perPartner == nil {
			perPartner = make(map[string]decimal.Decimal)
			directByCourse[line.CourseID] = perPartner
		}
		perPartner[cls.CompanyID] = perPartner[cls.CompanyID].Add(amount)
	}

	// The indirect denominator is the sum of ownership fractions across
	// non-excluded courses: one unit per wholly owned course, fractional
	// units for shared ones.
	denominator := decimal.Zero
	for _, course := range in.Courses {
		if course.Excluded {
			continue
		}
		for _, fraction := range course.Ownership {
			denominator = denominator.Add(fraction)
		}
	}
	var indirectUnit decimal.Decimal
	if denominator.IsZero() {
		if !indirectPool.IsZero() {
			return nil, configErrorf(in.Period, "course", "",
				"indirect cost pool %s with no non-excluded courses to apportion over", indirectPool)
		}
	} else {
		indirectUnit = indirectPool.Div(denominator)
	}

	entries := make([]LedgerEntry, 0, len(in.Courses)+len(directUnattributed))
	for _, course := range in.Courses {
		courseDirect := directByCourse[course.ID]
		for _, companyID := range sortedKeys(course.Ownership) {
			fraction := course.Ownership[companyID]
			indirect := decimal.Zero
			if !course.Excluded {
				indirect = indirectUnit.Mul(fraction)
			}
			// Direct cost follows the explicit target in full; it is never
			// re-split by ownership fraction.
			direct := courseDirect[companyID]
			entries = append(entries, newEntry(course.ID, companyID, course.Revenue.Mul(fraction), direct, indirect))
		}
		// A direct cost line may target a partner that owns none of the
		// course; the cost still lands on that pair rather than vanishing.
		for _, companyID := range sortedKeys(courseDirect) {
			if _, owns := course.Ownership[companyID]; owns {
				continue
			}
			entries = append(entries, newEntry(course.ID, companyID, decimal.Zero, courseDirect[companyID], decimal.Zero))
		}
	}
	for _, companyID := range sortedKeys(directUnattributed) {
		entries = append(entries, newEntry(UnattributedCourse, companyID, decimal.Zero, directUnattributed[companyID], decimal.Zero))
	}
	return entries, nil
}

func checkCourses(in Input) error {
	seen := make(map[string]struct{}, len(in.Courses))
	for _, course := range in.Courses {
		if course.ID == "" {
			return inputErrorf(in.Period, course.Name, "course has no id")
		}
		if _, dup := seen[course.ID]; dup {
			return inputErrorf(in.Period, course.ID, "duplicate course id")
		}
		seen[course.ID] = struct{}{}
		if course.Revenue.IsNegative() {
			return inputErrorf(in.Period, course.ID, "negative revenue %s", course.Revenue)
		}
		if len(course.Ownership) == 0 {
			return configErrorf(in.Period, "course", course.ID, "no owners: cannot allocate revenue")
		}
		for companyID, fraction := range course.Ownership {
			if fraction.IsNegative() {
				return configErrorf(in.Period, "course", course.ID,
					"negative ownership fraction %s for %s", fraction, companyID)
			}
		}
		if course.Excluded {
			continue
		}
		sum := decimal.Zero
		for _, fraction := range course.Ownership {
			sum = sum.Add(fraction)
		}
		if sum.Sub(decimal.New(1, 0)).Abs().GreaterThan(ownershipEpsilon) {
			return configErrorf(in.Period, "course", course.ID, "ownership fractions sum to %s, want 1", sum)
		}
	}
	return nil
}

func newEntry(courseID, companyID string, revenue, direct, indirect decimal.Decimal) LedgerEntry {
	cost := direct.Add(indirect)
	return LedgerEntry{
		CourseID:     courseID,
		CompanyID:    companyID,
		Revenue:      revenue,
		DirectCost:   direct,
		IndirectCost: indirect,
		Cost:         cost,
		Margin:       revenue.Sub(cost),
	}
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
