package income

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliotrack/foliotrack-backend/internal/adapter/repository/memory"
	"github.com/foliotrack/foliotrack-backend/internal/domain"
)

var (
	windowFrom = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	windowTo   = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
)

func mustSymbol(ticker, exchange string) domain.Symbol {
	s, err := domain.NewSymbol(ticker, exchange)
	if err != nil {
		panic(err)
	}
	return s
}

func incomeEvent(id domain.PortfolioID, seq int64, sym domain.Symbol, kind domain.IncomeKind, amount string, currency string, date time.Time) domain.IncomeRecorded {
	return domain.IncomeRecorded{
		Envelope: domain.Envelope{PortfolioID: id, Seq: seq, RecordedAt: date},
		Symbol:   sym,
		Income:   kind,
		Amount:   domain.MustMoney(decimal.RequireFromString(amount), currency),
		Date:     date,
	}
}

func TestSummarize_GroupsByMonth(t *testing.T) {
	id := domain.NewPortfolioID()
	aapl := mustSymbol("AAPL", "XNAS")

	events := []domain.Event{
		incomeEvent(id, 1, aapl, domain.IncomeKindDividend, "5", "USD", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)),
		incomeEvent(id, 2, aapl, domain.IncomeKindInterest, "2", "USD", time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)),
	}

	s := Summarize(events, windowFrom, windowTo)

	march := s.ByMonth[MonthKey{Year: 2024, Month: time.March}]
	assert.True(t, march.Dividends["USD"].Equal(decimal.NewFromInt(5)))
	assert.True(t, march.Interest["USD"].Equal(decimal.NewFromInt(2)))
	assert.True(t, march.Total()["USD"].Equal(decimal.NewFromInt(7)))
}

func TestSummarize_TotalIsDividendsPlusInterest(t *testing.T) {
	id := domain.NewPortfolioID()
	aapl := mustSymbol("AAPL", "XNAS")
	msft := mustSymbol("MSFT", "XNAS")

	events := []domain.Event{
		incomeEvent(id, 1, aapl, domain.IncomeKindDividend, "5.25", "USD", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)),
		incomeEvent(id, 2, msft, domain.IncomeKindDividend, "3.75", "USD", time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)),
		incomeEvent(id, 3, aapl, domain.IncomeKindInterest, "1.10", "USD", time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)),
	}

	s := Summarize(events, windowFrom, windowTo)

	dividends := s.Overall.Dividends["USD"]
	interest := s.Overall.Interest["USD"]
	assert.True(t, s.Overall.Total()["USD"].Equal(dividends.Add(interest)))
	assert.True(t, s.Overall.Total()["USD"].Equal(decimal.RequireFromString("10.10")))
}

func TestSummarize_GroupsBySymbol(t *testing.T) {
	id := domain.NewPortfolioID()
	aapl := mustSymbol("AAPL", "XNAS")
	msft := mustSymbol("MSFT", "XNAS")

	events := []domain.Event{
		incomeEvent(id, 1, aapl, domain.IncomeKindDividend, "5", "USD", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)),
		incomeEvent(id, 2, msft, domain.IncomeKindDividend, "3", "USD", time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)),
	}

	s := Summarize(events, windowFrom, windowTo)

	assert.True(t, s.BySymbol[aapl].Dividends["USD"].Equal(decimal.NewFromInt(5)))
	assert.True(t, s.BySymbol[msft].Dividends["USD"].Equal(decimal.NewFromInt(3)))
}

func TestSummarize_CurrenciesNeverMerged(t *testing.T) {
	id := domain.NewPortfolioID()
	aapl := mustSymbol("AAPL", "XNAS")

	events := []domain.Event{
		incomeEvent(id, 1, aapl, domain.IncomeKindDividend, "5", "USD", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)),
		incomeEvent(id, 2, aapl, domain.IncomeKindDividend, "4", "EUR", time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)),
	}

	s := Summarize(events, windowFrom, windowTo)

	assert.True(t, s.Overall.Dividends["USD"].Equal(decimal.NewFromInt(5)))
	assert.True(t, s.Overall.Dividends["EUR"].Equal(decimal.NewFromInt(4)))
	total := s.Overall.Total()
	assert.Len(t, total, 2)
}

func TestSummarize_WindowUsesRecordedDate(t *testing.T) {
	id := domain.NewPortfolioID()
	aapl := mustSymbol("AAPL", "XNAS")

	events := []domain.Event{
		// Inside the window
		incomeEvent(id, 1, aapl, domain.IncomeKindDividend, "5", "USD", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
		// Outside the window, even though appended later
		incomeEvent(id, 2, aapl, domain.IncomeKindDividend, "9", "USD", time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)),
		incomeEvent(id, 3, aapl, domain.IncomeKindDividend, "9", "USD", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
	}

	s := Summarize(events, windowFrom, windowTo)

	assert.True(t, s.Overall.Dividends["USD"].Equal(decimal.NewFromInt(5)))
}

func TestSummarize_IgnoresOtherEventKinds(t *testing.T) {
	id := domain.NewPortfolioID()
	aapl := mustSymbol("AAPL", "XNAS")

	events := []domain.Event{
		domain.InvestmentAdded{
			Envelope:      domain.Envelope{PortfolioID: id, Seq: 1, RecordedAt: windowFrom},
			InvestmentID:  domain.NewInvestmentID(),
			Symbol:        aapl,
			Quantity:      decimal.NewFromInt(10),
			PurchasePrice: domain.MustMoney(decimal.NewFromInt(150), "USD"),
			PurchaseDate:  windowFrom,
		},
		incomeEvent(id, 2, aapl, domain.IncomeKindDividend, "5", "USD", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)),
	}

	s := Summarize(events, windowFrom, windowTo)

	assert.True(t, s.Overall.Total()["USD"].Equal(decimal.NewFromInt(5)))
}

func TestIncomeService_SummaryFromLog(t *testing.T) {
	ctx := context.Background()
	id := domain.NewPortfolioID()
	aapl := mustSymbol("AAPL", "XNAS")

	log := memory.NewEventLog()
	require.NoError(t, log.Append(ctx, incomeEvent(id, 1, aapl, domain.IncomeKindDividend, "5", "USD", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, log.Append(ctx, incomeEvent(id, 2, aapl, domain.IncomeKindInterest, "2", "USD", time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))))

	service := NewIncomeService(log)
	s, err := service.Summary(ctx, id, windowFrom, windowTo)

	require.NoError(t, err)
	march := s.ByMonth[MonthKey{Year: 2024, Month: time.March}]
	assert.True(t, march.Total()["USD"].Equal(decimal.NewFromInt(7)))
}
