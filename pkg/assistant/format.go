package assistant

import (
	"fmt"
	"strings"
	"time"

	"walletchat/pkg/models"
	"walletchat/pkg/portfolio"
)

// Replies appended when a cycle cannot produce data.
const (
	MsgProcessingError   = "❌ Error processing your request. Please try again."
	MsgFetchError        = "❌ Error fetching data. Please try again later."
	MsgTransactionsError = "❌ Error fetching wallet transactions."
	MsgUnknownFunction   = "❌ Unknown function call."
)

func FormatBalance(address string, s models.PortfolioSummary, at time.Time) string {
	return fmt.Sprintf(`📊 *Wallet Balance Summary for %s:*
💰 *Total Portfolio Value:* $%s

🌐 *Chain Distribution:*
%s

%s

🕒 Last updated: %s`, address, s.TotalValueUSD, s.ChainDistributionLines(), s.ChangeSummary, at.Format("15:04:05"))
}

func FormatTransactions(address string, list models.TransactionList) string {
	lines := make([]string, 0, len(list.Items))
	for _, tx := range list.Items {
		lines = append(lines, fmt.Sprintf("- %s (%s)", tx.OperationType, tx.Hash))
	}
	return fmt.Sprintf("💰 *Last %d Transactions for %s:*\n", portfolio.PageSize, address) + strings.Join(lines, "\n")
}
