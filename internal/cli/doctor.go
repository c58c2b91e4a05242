package cli

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rainbowrelax/relax-cli/internal/exercise"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment and print connection info",
	Long:  `Validates the exercises, checks port availability, and provides connection examples.`,
	RunE:  runDoctor,
}

func init() {
	addNetworkFlags(doctorCmd.Flags())
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "🏥 Relax Environment Check")

	fmt.Fprintf(out, "Go Version:        %s\n", runtime.Version())
	fmt.Fprintf(out, "OS/Arch:           %s/%s\n\n", runtime.GOOS, runtime.GOARCH)

	registry, err := loadRegistry(cfg)
	if err != nil {
		fmt.Fprintf(out, "❌ Failed to load exercises: %s\n\n", err)
	} else {
		ids := registry.List()
		fmt.Fprintf(out, "✅ Found %d exercises: %v\n", len(ids), ids)
		for _, id := range ids {
			def, _ := registry.Get(id)
			if verr := def.Validate(); verr != nil {
				fmt.Fprintf(out, "   ❌ %s is invalid: %s\n", id, verr)
			} else if sum, mismatch := def.CycleMismatch(); mismatch {
				fmt.Fprintf(out, "   ⚠️  %s cycle %.2fs differs from its phase sum %.2fs\n", id, def.CycleDurationSeconds, sum)
			}
		}
		if _, err := registry.Get(exercise.DefaultID); err != nil {
			fmt.Fprintf(out, "   ❌ default exercise %s is missing\n", exercise.DefaultID)
		}
		fmt.Fprintln(out)
	}

	if dir := getExercisesDir(cfg.ExercisesDir); dir != "" {
		if _, err := os.Stat(dir); err == nil {
			fmt.Fprintf(out, "✅ Exercises directory: %s\n\n", dir)
		} else {
			fmt.Fprintf(out, "❌ Exercises directory not found: %s\n\n", dir)
		}
	}

	for i, name := range []string{"WebSocket", "SSE", "UDP"} {
		port := cfg.Port + i
		available := isPortAvailable(cfg.Host, port)
		if name == "UDP" {
			available = isUDPPortAvailable(cfg.Host, port)
		}
		if available {
			fmt.Fprintf(out, "✅ %s port %d is available\n", name, port)
		} else {
			fmt.Fprintf(out, "⚠️  %s port %d is in use\n", name, port)
			fmt.Fprintf(out, "   Use --port flag to specify a different port\n")
		}
	}
	fmt.Fprintln(out)

	ws := fmt.Sprintf("ws://localhost:%d/breathe", cfg.Port)

	fmt.Fprintln(out, "📡 Connection Examples:")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "JavaScript:")
	fmt.Fprintf(out, "  const ws = new WebSocket('%s');\n", ws)
	fmt.Fprintln(out, "  ws.onmessage = (event) => {")
	fmt.Fprintln(out, "    const frame = JSON.parse(event.data);")
	fmt.Fprintln(out, "    circle.style.transform = `scale(${frame.elements[0].scale})`;")
	fmt.Fprintln(out, "  };")
	fmt.Fprintln(out, "  ws.send('pause');  // pause | resume | toggle | reset")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Python:")
	fmt.Fprintln(out, "  import websocket, json")
	fmt.Fprintln(out, "  ws = websocket.WebSocket()")
	fmt.Fprintf(out, "  ws.connect('%s')\n", ws)
	fmt.Fprintln(out, "  while True:")
	fmt.Fprintln(out, "    frame = json.loads(ws.recv())")
	fmt.Fprintln(out, "    print(frame['phase']['name'], frame['countdown']['display'])")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Go:")
	fmt.Fprintf(out, "  conn, _, err := websocket.DefaultDialer.Dial(%q, nil)\n", ws)
	fmt.Fprintln(out, "  for {")
	fmt.Fprintln(out, "    _, message, err := conn.ReadMessage()")
	fmt.Fprintln(out, "    var frame models.Frame")
	fmt.Fprintln(out, "    json.Unmarshal(message, &frame)")
	fmt.Fprintln(out, "  }")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "curl (SSE):")
	fmt.Fprintf(out, "  curl -N http://localhost:%d/breathe/sse\n", cfg.Port+1)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "✅ Environment check complete")
	return nil
}

func isPortAvailable(host string, port int) bool {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

func isUDPPortAvailable(host string, port int) bool {
	conn, err := net.ListenPacket("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
