package notify

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/Liviu-netizen/bulldozer-marketing/internal/store"
)

// BookingEmail renders the subject and body for a new call booking.
func BookingEmail(b store.Booking) (subject, body string) {
	subject = fmt.Sprintf("New call booking: %s", b.Name)
	rows := [][2]string{
		{"Name", b.Name},
		{"Email", b.Email},
		{"Company", b.CompanyURL},
		{"Preferred date", b.PreferredDate},
		{"Notes", b.Notes},
	}
	return subject, renderRows("New call booking", rows)
}

// ScorecardEmail renders the subject and body for a submitted growth scorecard.
func ScorecardEmail(sc store.Scorecard) (subject, body string) {
	subject = fmt.Sprintf("New scorecard: %s", sc.Name)
	rows := [][2]string{
		{"Name", sc.Name},
		{"Email", sc.Email},
		{"Company", sc.CompanyURL},
		{"ARR range", sc.ARRRange},
		{"SaaS motion", sc.SaaSMotion},
		{"Bottleneck", sc.Bottleneck},
	}
	return subject, renderRows("New growth scorecard", rows)
}

// RecordEmail renders a generic table notification for webhook-delivered rows.
func RecordEmail(table string, record map[string]interface{}) (subject, body string) {
	subject = fmt.Sprintf("New %s record", table)
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][2]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, [2]string{k, fmt.Sprintf("%v", record[k])})
	}
	return subject, renderRows(subject, rows)
}

func renderRows(title string, rows [][2]string) string {
	var sb strings.Builder
	sb.WriteString("<h2>" + html.EscapeString(title) + "</h2><table>")
	for _, r := range rows {
		if strings.TrimSpace(r[1]) == "" {
			continue
		}
		sb.WriteString("<tr><td><strong>")
		sb.WriteString(html.EscapeString(r[0]))
		sb.WriteString("</strong></td><td>")
		sb.WriteString(html.EscapeString(r[1]))
		sb.WriteString("</td></tr>")
	}
	sb.WriteString("</table>")
	return sb.String()
}
