package domain

import (
	"context"
	"fmt"
	"sort"
)

// Accessor names a period-keyed variable template.
type Accessor string

const (
	PPeriod        Accessor = "p_period"
	TPeriod        Accessor = "t_period"
	DPeriod        Accessor = "d_period"
	PPeriodWithDot Accessor = "p_period_with_dot"
	TPeriodWithDot Accessor = "t_period_with_dot"
	DPeriodWithDot Accessor = "d_period_with_dot"
	HrPeriod       Accessor = "hr_period"
	DayPeriod      Accessor = "day_period"
	SixHrPeriod    Accessor = "six_hr_period"
)

var accessorTemplates = map[Accessor]string{
	PPeriod:        "_p%s_%d",
	TPeriod:        "_t%s_%d",
	DPeriod:        "_d%s_%d",
	PPeriodWithDot: "_p%s.%d",
	TPeriodWithDot: "_t%s.%d",
	DPeriodWithDot: "_d%s.%d",
	HrPeriod:       "_%s_hr_%d",
	DayPeriod:      "_%s_day_%d",
	SixHrPeriod:    "_%s_6h_%d",
}

// ParseAccessor validates an accessor name.
func ParseAccessor(s string) (Accessor, error) {
	a := Accessor(s)
	if _, ok := accessorTemplates[a]; !ok {
		return "", fmt.Errorf("unknown accessor %q", s)
	}
	return a, nil
}

// Accessors lists every accessor name, sorted.
func Accessors() []Accessor {
	out := make([]Accessor, 0, len(accessorTemplates))
	for a := range accessorTemplates {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// VarName expands the template for key and period i,
// e.g. PPeriod.VarName("temp", 2) == "_ptemp_2".
func (a Accessor) VarName(key string, i int) string {
	tmpl, ok := accessorTemplates[a]
	if !ok {
		return ""
	}
	return fmt.Sprintf(tmpl, key, i)
}

// Period returns the variable named by accessor a for key and period i,
// "" when absent.
func (r *Record) Period(ctx context.Context, a Accessor, key string, i int) (string, error) {
	name := a.VarName(key, i)
	if name == "" {
		return "", fmt.Errorf("unknown accessor %q", a)
	}
	return r.Var(ctx, name)
}

// Projection binds a record to one accessor.
type Projection struct {
	record   *Record
	accessor Accessor
}

// NewProjection returns a projection of r through a.
func NewProjection(r *Record, a Accessor) Projection {
	return Projection{record: r, accessor: a}
}

// Per returns the projected value for key and period i.
func (p Projection) Per(ctx context.Context, key string, i int) (string, error) {
	return p.record.Period(ctx, p.accessor, key, i)
}
