package calendar

// Factory picks the Calendar variant for a week standard. It holds no state;
// every Create returns a fresh Calendar with empty caches.
type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

// Create returns the ISO-8601 calendar when standard is WeekStandardISO8601,
// otherwise a Fiscal calendar built from cfg.
func (f *Factory) Create(standard WeekStandard, cfg Config) Calendar {
	if standard == WeekStandardISO8601 {
		return NewISO8601()
	}
	cfg.WeekStandard = WeekStandardDefault
	return NewFiscal(cfg)
}

// New is shorthand for NewFactory().Create(cfg.WeekStandard, cfg).
func New(cfg Config) Calendar {
	return NewFactory().Create(cfg.standard(), cfg)
}
