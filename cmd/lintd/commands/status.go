package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"

	"github.com/teranos/lintd/protocol"
	"github.com/teranos/lintd/supervisor"
)

// StatusCmd reports whether a lint server is listening
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a lint server is listening",
	Long: `Check the configured endpoint without sending a request and show the
process listening on the port, when it can be found.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var statusJSON bool

func init() {
	StatusCmd.Flags().BoolVarP(&statusJSON, "json", "j", false, "Output status as JSON")
}

// serverStatus is what `lintd status` reports
type serverStatus struct {
	Endpoint  string `json:"endpoint"`
	Listening bool   `json:"listening"`
	PID       int    `json:"pid,omitempty"`
	Command   string `json:"command,omitempty"`
	Error     string `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	ep := cfg.Endpoint()

	st := serverStatus{Endpoint: ep.String()}
	if err := protocol.NewClient(nil).Probe(ctx, ep); err != nil {
		st.Error = err.Error()
	} else {
		st.Listening = true
	}
	if pid, err := (supervisor.HostInspector{}).ListenerPID(ctx, ep.Port); err == nil && pid > 0 {
		st.PID = pid
		if p, err := process.NewProcessWithContext(ctx, int32(pid)); err == nil {
			st.Command, _ = p.CmdlineWithContext(ctx)
		}
	}

	if statusJSON {
		out, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	if st.Listening {
		pterm.Success.Printf("Lint server listening on %s\n", st.Endpoint)
	} else {
		pterm.Warning.Printf("No lint server on %s\n", st.Endpoint)
		pterm.Println(pterm.Gray("  " + st.Error))
	}
	if st.PID > 0 {
		pterm.Printf("  pid      %s\n", pterm.LightCyan(st.PID))
		if st.Command != "" {
			pterm.Printf("  command  %s\n", pterm.Gray(st.Command))
		}
	}
	return nil
}
