package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/nodecfg/internal/catalog"
	"github.com/muurk/nodecfg/internal/config"
	"github.com/muurk/nodecfg/internal/deviceconfig"
	"github.com/muurk/nodecfg/internal/discovery"
	"github.com/muurk/nodecfg/internal/document"
	"github.com/muurk/nodecfg/internal/logging"
	"github.com/muurk/nodecfg/internal/ui"
	"github.com/muurk/nodecfg/internal/units"
	"github.com/muurk/nodecfg/internal/urls"
	"github.com/muurk/nodecfg/internal/wizard"
	"github.com/muurk/nodecfg/internal/wizard/tui"
)

// Command flags
var (
	newDocument  bool
	assumeYes    bool
	watchStatus  bool
	outputFormat string
	fromUnits    string
	toUnits      string
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(forgetCmd)
}

// signalContext is cancelled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// troubleshooting turns a client error into the tips shown in failure boxes.
func troubleshooting(err error) []string {
	var tips []string
	for _, line := range strings.Split(deviceconfig.GetTroubleshootingHint(err), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "•"))
		if line != "" && line != "Troubleshooting:" {
			tips = append(tips, line)
		}
	}
	return append(tips, "See "+urls.TroubleshootingGuide)
}

// scanCmd discovers nodes on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nodes on the network",
	Long: `Scan for controller nodes using mDNS/DNS-SD discovery.

Discovered nodes are remembered in the user registry and offered as rule
targets in the wizard.`,
	Example: `  # Scan with the default timeout
  nodecfg scan

  # Longer scan for busy networks
  nodecfg scan --timeout 15`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	out := cmd.OutOrStdout()
	timeout := discoverTimeout()

	_, _ = fmt.Fprintf(out, "Scanning for nodes (timeout: %s)...\n\n", timeout)

	ctx, cancel := signalContext()
	defer cancel()

	scanner := discovery.NewScanner()
	scanner.Timeout = timeout
	nodes, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	recordDiscovered(nodes, registry, nil)

	if len(nodes) == 0 {
		_, _ = fmt.Fprintln(out, "No nodes found.")
		_, _ = fmt.Fprintln(out, "\nTroubleshooting:")
		_, _ = fmt.Fprintln(out, "  - Ensure the node is powered on and joined to your Wi-Fi")
		_, _ = fmt.Fprintln(out, "  - Check that multicast traffic is allowed on this network")
		_, _ = fmt.Fprintln(out, "  - Try increasing --timeout for slower networks")
		_, _ = fmt.Fprintln(out, "  - Use --node to specify an IP manually if discovery fails")
		_, _ = fmt.Fprintf(out, "\nFor more information, see: %s\n", urls.Discovery)
		printKnownNodes(out, registry)
		return nil
	}

	_, _ = fmt.Fprint(out, formatNodes(nodes))
	_, _ = fmt.Fprintln(out, "Use 'nodecfg status <id>' to view a node's live state")
	_, _ = fmt.Fprintln(out, "Use 'nodecfg wizard' for interactive configuration")
	return nil
}

func formatNodes(nodes []*discovery.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d node(s):\n\n", len(nodes))
	for i, n := range nodes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, n.ID)
		fmt.Fprintf(&b, "   Host:      %s\n", n.Hostname)
		fmt.Fprintf(&b, "   IP:        %s:%d\n", n.IP, n.Port)
		if count := n.InstanceCount(); count >= 0 {
			fmt.Fprintf(&b, "   Instances: %d\n", count)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func printKnownNodes(out io.Writer, reg *config.Registry) {
	ids := reg.NodeIDs()
	if len(ids) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out, "\nPreviously seen nodes:")
	for _, id := range ids {
		node := reg.Nodes[id]
		_, _ = fmt.Fprintf(out, "  %-20s %-15s %s\n", id, node.Address, node.Source)
	}
}

// wizardCmd launches the interactive TUI wizard
var wizardCmd = &cobra.Command{
	Use:   "wizard [file]",
	Short: "Launch interactive configuration wizard",
	Long: `Launch an interactive TUI wizard for node configuration.

The wizard walks through three pages:
- Identity: node metadata and the device and sensor instances
- Default rules: the rule each instance falls back to
- Schedule: triggers that change rules at set times

Without a file, the wizard discovers nodes and loads the configuration
stored on the chosen one. With a file, it edits that document instead.`,
	Example: `  # Launch wizard with auto-discovery
  nodecfg wizard
  # Or simply (wizard is default):
  nodecfg

  # Edit the configuration of a specific node
  nodecfg wizard --node 192.168.1.40

  # Start an empty configuration
  nodecfg wizard --new --node 192.168.1.40

  # Edit a local file and submit it to a node
  nodecfg wizard office.json --node 192.168.1.40`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWizard,
}

func init() {
	wizardCmd.Flags().BoolVar(&newDocument, "new", false, "Start from an empty configuration")
}

func runWizard(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx, cancel := signalContext()
	defer cancel()

	client := newClient()
	meta, targets, err := loadCatalogs(ctx, client, metadataPath, targetsPath, registry)
	if err != nil {
		return err
	}

	opts := tui.Options{
		Load: func(ctx context.Context, node *discovery.Node) (*document.Document, error) {
			body, err := client.Restore(ctx, node.IP)
			if err != nil {
				return nil, err
			}
			return document.Parse(body, meta, targets)
		},
		Uploader: func(node *discovery.Node) wizard.Uploader {
			up := newClient()
			if node != nil {
				up.NodeIP = node.IP
			}
			return up
		},
		Geocoder:       client,
		DebounceWindow: registry.Preferences.DebounceWindow(),
	}

	if nodeIP != "" {
		opts.Node = manualNode(nodeIP)
	}
	switch {
	case len(args) == 1:
		doc, err := readDocument(args[0], cmd.InOrStdin(), meta, targets)
		if err != nil {
			return err
		}
		opts.Document = doc
	case newDocument:
		opts.Document = document.New(meta, targets)
	}

	if opts.Node == nil && opts.Document == nil && registry.Preferences.AutoDiscover {
		timeout := discoverTimeout()
		opts.Scan = func(ctx context.Context) ([]*discovery.Node, error) {
			scanner := discovery.NewScanner()
			scanner.Timeout = timeout
			nodes, err := scanner.Scan(ctx)
			if err == nil {
				recordDiscovered(nodes, registry, targets)
			}
			return nodes, err
		}
	}

	node, submitted, err := tui.Run(opts)
	if err != nil {
		return fmt.Errorf("wizard error: %w", err)
	}
	if submitted && node != nil {
		rememberSubmission(node.ID, node.IP, -1)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration submitted to %s\n", node.IP)
	}
	return nil
}

func manualNode(ip string) *discovery.Node {
	return &discovery.Node{
		ID:       ip,
		IP:       ip,
		Port:     discovery.DefaultPort,
		Hostname: ip,
	}
}

// rememberSubmission records a successful upload in the registry. A
// negative count leaves the stored instance count alone.
func rememberSubmission(id, address string, instances int) {
	if id == "" {
		return
	}
	node := registry.RecordNode(id, address, config.SourceSubmit)
	if instances >= 0 {
		node.Instances = instances
	}
	if err := registry.Save(); err != nil {
		logging.Warn("Failed to save registry", zap.Error(err))
	}
}

// forgetCmd removes nodes from the registry
var forgetCmd = &cobra.Command{
	Use:   "forget <node>...",
	Short: "Remove nodes from the list of known nodes",
	Long: `Remove nodes from the user registry by id.

Forgotten nodes are no longer offered as rule targets or used to address
submissions until they are discovered or submitted to again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runForget,
}

func runForget(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	removed := forgetNodes(registry, args)
	if removed == 0 {
		return fmt.Errorf("no known node matches %s", strings.Join(args, ", "))
	}
	if err := registry.Save(); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Forgot %d node(s)\n", removed)
	return nil
}

// forgetNodes removes the given ids and returns how many were known.
func forgetNodes(reg *config.Registry, ids []string) int {
	removed := 0
	for _, id := range ids {
		if reg.GetNode(id) != nil {
			reg.RemoveNode(id)
			removed++
		}
	}
	return removed
}

// validateCmd checks a configuration file offline
var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a configuration file",
	Long: `Check a configuration file against the metadata and target catalogs
without contacting any node.

Every field the wizard would refuse is listed per page. Values that are
merely unfinished, such as an empty nickname, are listed separately from
values that are wrong.`,
	Example: `  # Validate with catalogs fetched from the server
  nodecfg validate office.json

  # Fully offline
  nodecfg validate office.json --metadata metadata.yaml --targets targets.json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx, cancel := signalContext()
	defer cancel()

	meta, targets, err := loadCatalogs(ctx, newClient(), metadataPath, targetsPath, registry)
	if err != nil {
		return err
	}
	doc, err := readDocument(args[0], cmd.InOrStdin(), meta, targets)
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	if n := reportProblems(printer, doc); n > 0 {
		printer.PrintWarning("Configuration needs attention", map[string]string{
			"Node":   doc.Metadata().ID,
			"Fields": strconv.Itoa(n),
		})
		printer.Println("For the file format, see: " + urls.ConfigFormat)
		return fmt.Errorf("%w: %d field(s) need attention", wizard.ErrNotSubmittable, n)
	}
	printer.PrintSuccess("Configuration is valid", map[string]string{
		"Node":      doc.Metadata().ID,
		"Instances": strconv.Itoa(doc.Len()),
	})
	return nil
}

// reportProblems prints every field that blocks submission, grouped by page,
// and returns how many there are.
func reportProblems(printer *ui.Printer, doc *document.Document) int {
	c := wizard.New(doc)
	total := 0
	for _, page := range []wizard.Page{wizard.PageIdentity, wizard.PageRules, wizard.PageSchedule} {
		refs := c.InvalidFields(page)
		if len(refs) == 0 {
			continue
		}
		fields := make([]string, len(refs))
		for i, ref := range refs {
			fields[i] = ref.String()
		}
		printer.PrintFieldList(page.String(), fields, true)
		printer.Newline()
		total += len(refs)
	}
	return total
}

// submitCmd uploads a configuration file
var submitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Submit a configuration file to a node",
	Long: `Validate a configuration file and upload it through the config server.

The upload is refused while any field is invalid. When the node already
holds a configuration you are asked to confirm the overwrite unless --yes
is given.`,
	Example: `  # Submit to the node recorded for the document's id
  nodecfg submit office.json

  # Submit to a specific node without confirmation
  nodecfg submit office.json --node 192.168.1.40 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask before overwriting")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx, cancel := signalContext()
	defer cancel()

	client := newClient()
	meta, targets, err := loadCatalogs(ctx, client, metadataPath, targetsPath, registry)
	if err != nil {
		return err
	}
	doc, err := readDocument(args[0], cmd.InOrStdin(), meta, targets)
	if err != nil {
		return err
	}

	id := doc.Metadata().ID
	target := nodeIP
	if target == "" {
		if node := registry.GetNode(id); node != nil {
			target = node.Address
		}
	}
	if target == "" && id != "" && registry.Preferences.AutoDiscover {
		target = locateNode(ctx, id)
	}
	client.NodeIP = target
	doc.SetNodeAddress(target)

	label := id
	if target != "" {
		label = id + " (" + target + ")"
	}
	if !assumeYes && ui.IsInteractive() && registry.GetNode(id) != nil {
		if !ui.ConfirmOverwrite(cmd.InOrStdin(), cmd.OutOrStdout(), label) {
			return nil
		}
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Submit configuration",
		Command: "nodecfg submit " + args[0],
		Params: map[string]string{
			"Node":      label,
			"Server":    client.BaseURL,
			"Instances": strconv.Itoa(doc.Len()),
		},
		StepNames:       []string{"Validate", "Upload", "Update registry"},
		Output:          cmd.OutOrStdout(),
		Troubleshooting: troubleshooting,
	})

	_, err = runner.Run(ctx, submitOperation(doc, client, func() {
		rememberSubmission(id, target, doc.Len())
	}))
	return err
}

// locateNode waits for the node advertising id over mDNS. An empty result
// lets the server route by the document's metadata.
func locateNode(ctx context.Context, id string) string {
	scanner := discovery.NewScanner()
	scanner.Timeout = discoverTimeout()
	node, err := scanner.WaitForNode(ctx, id)
	if err != nil || node == nil {
		logging.Debug("Node not found by mDNS", zap.String("id", id), zap.Error(err))
		return ""
	}
	recordDiscovered([]*discovery.Node{node}, registry, nil)
	return node.IP
}

// submitOperation validates and uploads doc. onDone runs after a successful
// upload.
func submitOperation(doc *document.Document, up wizard.Uploader, onDone func()) ui.Operation {
	return func(ctx context.Context, onStep ui.StepCallback) (map[string]string, error) {
		c := wizard.New(doc)
		instances := doc.Len()

		onStep(1, "", ui.StepRunning, "")
		if !c.Submittable() {
			n := 0
			for _, page := range []wizard.Page{wizard.PageIdentity, wizard.PageRules, wizard.PageSchedule} {
				n += len(c.InvalidFields(page))
			}
			onStep(1, "", ui.StepFailed, fmt.Sprintf("%d invalid field(s)", n))
			return nil, fmt.Errorf("%w: run 'nodecfg validate' for details", wizard.ErrNotSubmittable)
		}
		onStep(1, "", ui.StepComplete, "")

		onStep(2, "", ui.StepRunning, "")
		if err := c.Submit(ctx, up); err != nil {
			onStep(2, "", ui.StepFailed, deviceconfig.GetShortErrorMessage(err))
			return nil, err
		}
		onStep(2, "", ui.StepComplete, "")

		onStep(3, "", ui.StepRunning, "")
		if onDone != nil {
			onDone()
		}
		onStep(3, "", ui.StepComplete, "")

		return map[string]string{"Instances": strconv.Itoa(instances)}, nil
	}
}

// statusCmd shows the live state of a node
var statusCmd = &cobra.Command{
	Use:   "status [node]",
	Short: "Show a node's live status",
	Long: `Show the live state of every instance on a node: whether it is
enabled, its current rule and, for sensors, the latest reading.

The node can be given as an IP address or as an id from the registry.
With --watch the status is streamed until you quit.`,
	Example: `  # One-off status
  nodecfg status 192.168.1.40

  # Stream updates in a dashboard
  nodecfg status office --watch

  # JSON output for scripting
  nodecfg status --node 192.168.1.40 --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Stream status updates")
	statusCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format (table, json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	arg := ""
	if len(args) == 1 {
		arg = args[0]
	}
	ip, err := resolveNode(arg, nodeIP, registry)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	client := newClient()

	if watchStatus {
		return tui.RunDashboard(ctx, ip, deviceconfig.NewStatusWatcher(client).Watch)
	}

	status, err := client.Status(ctx, ip)
	if err != nil {
		ui.NewPrinter(cmd.OutOrStdout()).PrintError("Status unavailable", err, troubleshooting(err))
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, _ = fmt.Fprintln(out, string(data))
		return nil
	}
	_, _ = fmt.Fprint(out, formatStatus(status))
	return nil
}

func formatStatus(s *deviceconfig.NodeStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Node %s: %d instance(s)\n\n", s.Address, len(s.Instances))
	fmt.Fprintf(&b, "  %-10s %-18s %-12s %-8s %-10s %s\n", "ID", "NICKNAME", "TYPE", "STATE", "RULE", "READING")
	for _, id := range s.IDs() {
		inst := s.Instances[id]
		state := "disabled"
		if inst.Enabled {
			state = "enabled"
		}
		if inst.Turned != "" {
			state = strings.ToLower(inst.Turned)
		}
		reading := ""
		if inst.Reading != nil {
			reading = units.FormatNumber(*inst.Reading) + " " + inst.Units
		}
		fmt.Fprintf(&b, "  %-10s %-18s %-12s %-8s %-10s %s\n", id, inst.Nickname, inst.Type, state, inst.Rule, reading)
	}
	return b.String()
}

// convertCmd converts a temperature between units
var convertCmd = &cobra.Command{
	Use:   "convert <value>",
	Short: "Convert a temperature between units",
	Long: `Convert a temperature the same way the wizard does when an instance's
units change: the result is rounded to one decimal. Non-numeric values such
as "enabled" pass through unchanged.`,
	Example: `  # Celsius to the preferred units
  nodecfg convert 21.5 --from celsius

  nodecfg convert 70 --from fahrenheit --to kelvin`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&fromUnits, "from", string(units.Celsius), "Source units")
	convertCmd.Flags().StringVar(&toUnits, "to", "", "Target units (default from preferences)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	from, err := parseUnitsFlag("from", fromUnits)
	if err != nil {
		return err
	}
	target := toUnits
	if target == "" {
		target = preferredUnit
	}
	to, err := parseUnitsFlag("to", target)
	if err != nil {
		return err
	}

	result, converted := units.ConvertString(args[0], from, to)
	if !converted {
		logging.Debug("Value passed through unchanged", zap.String("value", args[0]))
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), result)
	return nil
}

// commandsCmd lists the remote commands an instance's rules may use
var commandsCmd = &cobra.Command{
	Use:   "commands <file> <instance> [target]",
	Short: "List remote commands available to an instance",
	Long: `List the targets an instance's rules may address, or with a target the
commands legal on it. The local node is always available as 127.0.0.1 and
reflects the instances in the file.`,
	Example: `  # Targets available to device1
  nodecfg commands office.json device1

  # Commands sensor1 may send to the local node
  nodecfg commands office.json sensor1 127.0.0.1`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runCommands,
}

func runCommands(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx, cancel := signalContext()
	defer cancel()

	meta, targets, err := loadCatalogs(ctx, newClient(), metadataPath, targetsPath, registry)
	if err != nil {
		return err
	}
	doc, err := readDocument(args[0], cmd.InOrStdin(), meta, targets)
	if err != nil {
		return err
	}

	target := ""
	if len(args) == 3 {
		target = args[2]
	}
	out, err := formatCommands(doc, args[1], target)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func formatCommands(doc *document.Document, id, target string) (string, error) {
	if _, ok := doc.Instance(id); !ok {
		return "", fmt.Errorf("%w: %s", document.ErrUnknownInstance, id)
	}
	resolver := doc.Resolver(id)

	var b strings.Builder
	if target == "" {
		fmt.Fprintf(&b, "Targets for %s:\n", id)
		for _, addr := range resolver.Targets() {
			fmt.Fprintf(&b, "  %-20s %-15s %s\n", addr.Name, addr.IP, strings.Join(resolver.CommandNames(addr.IP), ", "))
		}
		return b.String(), nil
	}

	if !resolver.KnownTarget(target) {
		return "", fmt.Errorf("unknown target %s", target)
	}
	fmt.Fprintf(&b, "Commands for %s on %s:\n", id, target)
	for _, e := range resolver.Entries(target) {
		if e.Set.Remotes != nil {
			for _, remote := range sortedKeys(e.Set.Remotes) {
				fmt.Fprintf(&b, "  %s %s: %s\n", catalog.IRKeyLabel, remote, strings.Join(e.Set.Remotes[remote], ", "))
			}
			continue
		}
		fmt.Fprintf(&b, "  %s: %s\n", e.Label, strings.Join(e.Set.Commands, ", "))
	}
	return b.String(), nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
