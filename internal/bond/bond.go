package bond

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/daycount"
	"benritz/bondcalc/internal/schedule"
	"benritz/bondcalc/internal/types"
)

// DefaultFaceValue is the conventional face amount all prices are quoted against.
const DefaultFaceValue = 100.0

// Descriptor is the static data of a plain fixed-rate bond as delivered by a
// reference data provider.
type Descriptor struct {
	Code         string
	IssueDate    time.Time
	MaturityDate time.Time
	// CouponRate is the annual coupon as a decimal (0.05 for 5%).
	CouponRate     float64
	TenorMonths    int
	DayCount       daycount.Convention
	SettlementDays int
	FaceValue      float64
}

// Frequency returns the number of coupons per year.
func (d Descriptor) Frequency() int {
	if d.TenorMonths <= 0 {
		return 0
	}
	return 12 / d.TenorMonths
}

// Validate checks the descriptor without building a schedule.
func (d Descriptor) Validate() error {
	if d.IssueDate.IsZero() {
		return fmt.Errorf("%w: %w", types.ErrInvalidDescriptor, types.ErrInvalidIssueDate)
	}
	if d.MaturityDate.IsZero() {
		return fmt.Errorf("%w: %w", types.ErrInvalidDescriptor, types.ErrInvalidMaturityDate)
	}
	if !d.IssueDate.Before(d.MaturityDate) {
		return fmt.Errorf("%w: issue date %s is not before maturity %s", types.ErrInvalidDescriptor,
			calendar.FormatDate(d.IssueDate), calendar.FormatDate(d.MaturityDate))
	}
	if err := schedule.ValidateTenor(d.TenorMonths); err != nil {
		return err
	}
	if d.CouponRate < 0 {
		return fmt.Errorf("%w: negative coupon rate %g", types.ErrInvalidDescriptor, d.CouponRate)
	}
	if d.FaceValue < 0 {
		return fmt.Errorf("%w: negative face value %g", types.ErrInvalidDescriptor, d.FaceValue)
	}
	if d.SettlementDays < 0 {
		return fmt.Errorf("%w: negative settlement lag %d", types.ErrInvalidDescriptor, d.SettlementDays)
	}
	return nil
}

// CashFlow is a single dated payment per FaceValue of the bond.
type CashFlow struct {
	Date      time.Time
	Coupon    float64
	Principal float64
}

func (c CashFlow) Amount() float64 {
	return c.Coupon + c.Principal
}

type options struct {
	calendar   *calendar.Calendar
	convention calendar.BusinessDayConvention
	stub       schedule.StubPolicy
	rule       schedule.Rule
	solver     SolverConfig
}

type Option func(*options)

// WithCalendar sets the calendar used for settlement lags.
func WithCalendar(cal *calendar.Calendar) Option {
	return func(o *options) {
		if cal != nil {
			o.calendar = cal
		}
	}
}

// WithConvention rolls coupon dates falling on holidays. Maturity is never adjusted.
func WithConvention(c calendar.BusinessDayConvention) Option {
	return func(o *options) { o.convention = c }
}

func WithStubPolicy(p schedule.StubPolicy) Option {
	return func(o *options) { o.stub = p }
}

func WithRule(r schedule.Rule) Option {
	return func(o *options) { o.rule = r }
}

// WithSolver overrides the bracket and stopping criteria of the yield solver.
func WithSolver(cfg SolverConfig) Option {
	return func(o *options) { o.solver = cfg.withDefaults() }
}

// Bond is a fixed-rate coupon bond. It is immutable once built: every dated
// query takes its evaluation date as an argument, so a Bond can be shared
// between goroutines.
type Bond struct {
	code           string
	face           float64
	couponRate     float64
	settlementDays int
	dayCount       daycount.Convention
	calendar       *calendar.Calendar
	schedule       *schedule.Schedule
	cashFlows      []CashFlow
	solver         SolverConfig
}

// New builds the schedule and cash flows of the bond described by desc.
// Schedules default to unadjusted dates and backward generation, with no
// end-of-month rule.
func New(desc Descriptor, opts ...Option) (*Bond, error) {
	o := options{
		calendar:   calendar.WeekendsOnly(),
		convention: calendar.Unadjusted,
		stub:       schedule.ShortStub,
		rule:       schedule.Backward,
		solver:     DefaultSolverConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if desc.FaceValue == 0 {
		desc.FaceValue = DefaultFaceValue
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	sched, err := schedule.Generate(schedule.Params{
		Issue:                 desc.IssueDate,
		Maturity:              desc.MaturityDate,
		TenorMonths:           desc.TenorMonths,
		Calendar:              o.calendar,
		Convention:            o.convention,
		TerminationConvention: calendar.Unadjusted,
		Rule:                  o.rule,
		Stub:                  o.stub,
	})
	if err != nil {
		return nil, err
	}

	b := &Bond{
		code:           desc.Code,
		face:           desc.FaceValue,
		couponRate:     desc.CouponRate,
		settlementDays: desc.SettlementDays,
		dayCount:       desc.DayCount,
		calendar:       o.calendar,
		schedule:       sched,
		solver:         o.solver,
	}

	periods := sched.Periods()
	b.cashFlows = make([]CashFlow, 0, len(periods))
	for i, p := range periods {
		frac, err := b.periodFraction(i, p.Start, p.End)
		if err != nil {
			return nil, err
		}
		b.cashFlows = append(b.cashFlows, CashFlow{
			Date:   p.End,
			Coupon: b.face * b.couponRate * frac,
		})
	}
	b.cashFlows[len(b.cashFlows)-1].Principal = b.face

	return b, nil
}

func (b *Bond) Code() string                  { return b.code }
func (b *Bond) FaceValue() float64            { return b.face }
func (b *Bond) CouponRate() float64           { return b.couponRate }
func (b *Bond) DayCount() daycount.Convention { return b.dayCount }
func (b *Bond) Frequency() int                { return b.schedule.Frequency() }
func (b *Bond) SettlementDays() int           { return b.settlementDays }
func (b *Bond) IssueDate() time.Time          { return b.schedule.Issue() }
func (b *Bond) MaturityDate() time.Time       { return b.schedule.Maturity() }

// Schedule returns a copy of the coupon dates.
func (b *Bond) Schedule() []time.Time {
	return append([]time.Time(nil), b.schedule.Dates...)
}

// CashFlows returns a copy of the cash flows in date order.
func (b *Bond) CashFlows() []CashFlow {
	return append([]CashFlow(nil), b.cashFlows...)
}

// SettlementDate returns the trade date advanced by the settlement lag in business days.
func (b *Bond) SettlementDate(trade time.Time) time.Time {
	return b.calendar.AddBusinessDays(calendar.Normalize(trade), b.settlementDays)
}

func (b *Bond) checkRange(asOf time.Time) error {
	if asOf.Before(b.IssueDate()) || asOf.After(b.MaturityDate()) {
		return fmt.Errorf("%w: %s is outside [%s, %s]", types.ErrOutOfRange, calendar.FormatDate(asOf),
			calendar.FormatDate(b.IssueDate()), calendar.FormatDate(b.MaturityDate()))
	}
	return nil
}

// periodIndex returns the index of the largest schedule date on or before asOf.
func (b *Bond) periodIndex(asOf time.Time) int {
	dates := b.schedule.Dates
	j := sort.Search(len(dates), func(i int) bool {
		return dates[i].After(asOf)
	})
	return j - 1
}

// AccruedInterest returns the coupon accrued from the start of the period
// containing asOf. It is zero on every schedule date.
func (b *Bond) AccruedInterest(asOf time.Time) (float64, error) {
	asOf = calendar.Normalize(asOf)
	if err := b.checkRange(asOf); err != nil {
		return 0, err
	}

	i := b.periodIndex(asOf)
	if i >= len(b.cashFlows) {
		return 0, nil
	}

	frac, err := b.periodFraction(i, b.schedule.Dates[i], asOf)
	if err != nil {
		return 0, err
	}
	return b.face * b.couponRate * frac, nil
}

// DirtyPrice adds the interest accrued at asOf to a clean price.
func (b *Bond) DirtyPrice(cleanPrice float64, asOf time.Time) (float64, error) {
	accrued, err := b.AccruedInterest(asOf)
	if err != nil {
		return 0, err
	}
	return cleanPrice + accrued, nil
}

func (b *Bond) CleanPrice(dirtyPrice float64, asOf time.Time) (float64, error) {
	accrued, err := b.AccruedInterest(asOf)
	if err != nil {
		return 0, err
	}
	return dirtyPrice - accrued, nil
}

// CouponsReceivedBetween sums the cash flows paid in (start, end]: a flow on
// start belongs to the seller, a flow on end to the holder.
func (b *Bond) CouponsReceivedBetween(start, end time.Time) (float64, error) {
	start, end = calendar.Normalize(start), calendar.Normalize(end)
	if end.Before(start) {
		return 0, fmt.Errorf("%w: %s is after %s", types.ErrInvalidRange, calendar.FormatDate(start), calendar.FormatDate(end))
	}

	amounts := []float64{}
	for _, cf := range b.cashFlows {
		if cf.Date.After(start) && !cf.Date.After(end) {
			amounts = append(amounts, cf.Amount())
		}
	}
	return floats.Sum(amounts), nil
}

// NextCouponDate returns the first payment date strictly after asOf.
func (b *Bond) NextCouponDate(asOf time.Time) (time.Time, error) {
	asOf = calendar.Normalize(asOf)
	for _, cf := range b.cashFlows {
		if cf.Date.After(asOf) {
			return cf.Date, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: no coupon after %s", types.ErrOutOfRange, calendar.FormatDate(asOf))
}

// PreviousCouponDate returns the start of the coupon period containing asOf.
func (b *Bond) PreviousCouponDate(asOf time.Time) (time.Time, error) {
	asOf = calendar.Normalize(asOf)
	if err := b.checkRange(asOf); err != nil {
		return time.Time{}, err
	}
	return b.schedule.Dates[b.periodIndex(asOf)], nil
}
