package cmd

import (
	"fmt"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"
)

var watchFromStart bool

var watchCmd = &cobra.Command{
	Use:   "watch <logfile>",
	Short: "Tail a log file",
	Long: `Watch follows a log file, such as a JSONL session log, and prints
new lines as they are appended, the way a build pipeline would monitor
progress. No sigforge command writes such a log itself.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		location := &tail.SeekInfo{Whence: 2} // end of file
		if watchFromStart {
			location = &tail.SeekInfo{Whence: 0}
		}

		t, err := tail.TailFile(args[0], tail.Config{
			Follow:   true,
			ReOpen:   true,
			Location: location,
		})
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}

		for line := range t.Lines {
			if line.Err != nil {
				fmt.Println("watch:", line.Err)
				continue
			}
			fmt.Println(line.Text)
		}
		return t.Wait()
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchFromStart, "from-start", false, "Read the whole file before following new lines")
}
