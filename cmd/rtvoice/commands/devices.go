package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/rtvoice/pkg/audio/portaudio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := portaudio.Devices()
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}
		if outputJSON {
			return outputResult(devices)
		}
		for _, d := range devices {
			marker := "  "
			switch {
			case d.IsDefaultInput && d.IsDefaultOutput:
				marker = "io"
			case d.IsDefaultInput:
				marker = "i "
			case d.IsDefaultOutput:
				marker = " o"
			}
			fmt.Printf("%s %3d  %-40s in:%d out:%d  %.0f Hz\n",
				marker, d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
		}
		return nil
	},
}
