package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/callkit/pkg/audio/portaudio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices",
	Long: `List the audio devices PortAudio can see. Calls always use the default
input and output devices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := portaudio.Devices()
		if err != nil {
			return err
		}
		return outputResult(devices)
	},
}
