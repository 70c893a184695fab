package sink

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/meiking/cpu-anomaly-monitor/pkg/common"
)

// MessagePreamble opens every alert message
const MessagePreamble = "⚠️ Warning! The following instances have abnormal CPU usage:"

// FormatMessage renders the preamble followed by an aligned instance/value
// table with one row per reading.
func FormatMessage(readings []common.Reading) string {
	buf := &bytes.Buffer{}
	buf.WriteString(MessagePreamble)
	buf.WriteByte('\n')

	w := tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "instance\tvalue")
	for _, r := range readings {
		fmt.Fprintf(w, "%s\t%s\n", r.Instance, common.FormatValue(r.Value))
	}
	w.Flush()

	return buf.String()
}
