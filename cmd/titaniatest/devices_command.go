package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"titaniatest/internal/devices"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "devices",
		Short:       "List connected cameras and serial ports",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			var cams []devices.Camera
			if ctx.inventory.Cameras != nil {
				var err error
				cams, err = ctx.inventory.Cameras.ListCameras(cmd.Context())
				if err != nil {
					return fmt.Errorf("list cameras: %w", err)
				}
			}
			fmt.Fprintln(out, "Cameras")
			if len(cams) == 0 {
				fmt.Fprintln(out, "  none found")
			} else {
				fmt.Fprintln(out, renderTable(
					[]string{"Device", "Serial", "Name", "Titania"},
					cameraRows(cams),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				))
			}

			var ports []devices.Port
			if ctx.inventory.Ports != nil {
				var err error
				ports, err = ctx.inventory.Ports.ListPorts()
				if err != nil {
					return fmt.Errorf("list serial ports: %w", err)
				}
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Serial ports")
			if len(ports) == 0 {
				fmt.Fprintln(out, "  none found")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Port", "USB", "VID:PID", "Serial", "Product"},
				portRows(ports),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func cameraRows(cams []devices.Camera) [][]string {
	rows := make([][]string, 0, len(cams))
	for _, cam := range cams {
		rows = append(rows, []string{cam.Device, cam.Serial, cam.Name, titaniaSide(cam.Name)})
	}
	return rows
}

// titaniaSide reports which side of a Titania rig a user-defined name
// belongs to, or "" for other cameras.
func titaniaSide(name string) string {
	if !strings.HasPrefix(name, "I3DRTitania-") {
		return ""
	}
	switch {
	case strings.HasSuffix(name, "_l"):
		return "left of " + strings.TrimSuffix(strings.TrimPrefix(name, "I3DRTitania-"), "_l")
	case strings.HasSuffix(name, "_r"):
		return "right of " + strings.TrimSuffix(strings.TrimPrefix(name, "I3DRTitania-"), "_r")
	default:
		return ""
	}
}

func portRows(ports []devices.Port) [][]string {
	rows := make([][]string, 0, len(ports))
	for _, port := range ports {
		ids := ""
		if port.VID != "" || port.PID != "" {
			ids = port.VID + ":" + port.PID
		}
		rows = append(rows, []string{port.Name, yesNo(port.USB), ids, port.Serial, port.Product})
	}
	return rows
}
