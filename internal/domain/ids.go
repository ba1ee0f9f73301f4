package domain

import "github.com/google/uuid"

// PortfolioID uniquely identifies a portfolio. Assigned once at creation,
// immutable thereafter.
type PortfolioID uuid.UUID

// InvestmentID uniquely identifies an investment within a portfolio.
type InvestmentID uuid.UUID

// NewPortfolioID returns a new random portfolio identifier.
func NewPortfolioID() PortfolioID {
	return PortfolioID(uuid.New())
}

// NewInvestmentID returns a new random investment identifier.
func NewInvestmentID() InvestmentID {
	return InvestmentID(uuid.New())
}

// ParsePortfolioID parses the canonical string form of a portfolio ID.
func ParsePortfolioID(s string) (PortfolioID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return PortfolioID{}, err
	}
	return PortfolioID(id), nil
}

// ParseInvestmentID parses the canonical string form of an investment ID.
func ParseInvestmentID(s string) (InvestmentID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return InvestmentID{}, err
	}
	return InvestmentID(id), nil
}

func (id PortfolioID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether the ID is the zero value. A zero PortfolioID marks
// market-scoped events that belong to no single portfolio.
func (id PortfolioID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

func (id InvestmentID) String() string { return uuid.UUID(id).String() }

func (id InvestmentID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText implements encoding.TextMarshaler so IDs serialize in their
// canonical string form.
func (id PortfolioID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *PortfolioID) UnmarshalText(b []byte) error {
	parsed, err := ParsePortfolioID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id InvestmentID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *InvestmentID) UnmarshalText(b []byte) error {
	parsed, err := ParseInvestmentID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
