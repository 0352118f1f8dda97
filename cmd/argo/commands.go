package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/argo/internal/endpoint"
	"github.com/muurk/argo/internal/listener"
	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/probe"
	"github.com/muurk/argo/internal/transport"
	transportbuiltin "github.com/muurk/argo/internal/transport/builtin"
	"github.com/muurk/argo/internal/tui"
	"github.com/muurk/argo/internal/ui"
	"github.com/muurk/argo/internal/wire"
)

// fallbackHost is advertised when the local host's address cannot be found
const fallbackHost = "127.0.0.1"

// listenerLabel tags the respond-to URL of the built-in listener
const listenerLabel = "argo"

// resolver is shared by every command; tests swap in a fake source.
var resolver = endpoint.NewResolver(nil)

// Sender flags
var (
	transportType  string
	transportProps map[string]string
)

// Probe flags
var (
	contractIDs []string
	instanceIDs []string
	payloadName string
	hopLimit    int
	clientID    string
	respondTo   []string
)

// Listener flags
var (
	noListen   bool
	listenHost string
	listenPort int
	advertise  string
	certPath   string
	keyPath    string
)

// Output flags
var (
	waitFor      time.Duration
	outputFormat string
	verbose      bool
)

var probeTips = []string{
	"Check that argod is running and shares a transport with this client",
	"Multicast needs both hosts on the same segment; try --prop networkInterfaceName=<nic>",
	"Responders must be able to reach the advertised callback; set --advertise to a routable address",
	"Run with ARGO_LOG_LEVEL=debug for protocol logging",
}

func addSenderFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&transportType, "transport", "t", "multicast", "Transport to send probes on")
	cmd.Flags().StringToStringVarP(&transportProps, "prop", "P", nil, "Transport property key=value (repeatable, ${ni:...} expanded)")
}

func addProbeFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&contractIDs, "contract", nil, "Service contract ID to ask for (repeatable)")
	cmd.Flags().StringSliceVar(&instanceIDs, "instance", nil, "Service instance ID to ask for (repeatable)")
	cmd.Flags().StringVar(&payloadName, "payload", "xml", "Response payload type (xml, json)")
	cmd.Flags().IntVar(&hopLimit, "hop-limit", 1, "Probe hop limit")
	cmd.Flags().StringVar(&clientID, "client-id", "", "Client ID sent with the probe")
	cmd.Flags().StringSliceVar(&respondTo, "respond-to", nil, "Extra respond-to URL, optionally label=url (repeatable)")
}

func addListenerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&listenHost, "listen-host", "", "Address the response listener binds (empty = all interfaces)")
	cmd.Flags().IntVarP(&listenPort, "port", "p", listener.DefaultPort, "Port the response listener binds (0 = any free port)")
	cmd.Flags().StringVar(&advertise, "advertise", "", "Host put in the callback URL (default: this host's site-local address; ${ni:...} expanded)")
	cmd.Flags().StringVar(&certPath, "cert", "", "TLS certificate for an HTTPS listener")
	cmd.Flags().StringVar(&keyPath, "key", "", "TLS private key for an HTTPS listener")
}

func init() {
	addSenderFlags(probeCmd)
	addProbeFlags(probeCmd)
	addListenerFlags(probeCmd)
	probeCmd.Flags().BoolVar(&noListen, "no-listen", false, "Send only; responses go to the --respond-to URLs")
	probeCmd.Flags().DurationVarP(&waitFor, "wait", "w", 5*time.Second, "How long to collect responses")
	probeCmd.Flags().StringVarP(&outputFormat, "format", "o", "cards", "Output format (cards, json)")
	probeCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show the encoded probe")

	addListenerFlags(listenCmd)

	addSenderFlags(browseCmd)
	addProbeFlags(browseCmd)
	addListenerFlags(browseCmd)
	browseCmd.Flags().DurationVarP(&waitFor, "wait", "w", tui.DefaultProbeWindow, "How long each probe waits for responses")

	resolveCmd.Flags().StringVar(&resolveKind, "type", endpoint.KindInterface, "Resolver type for bare specs (ni, ip)")
	resolveCmd.Flags().BoolVar(&strictResolve, "strict", false, "Fail when anything does not resolve")
}

// newSender builds and initializes the --transport sender.
func newSender() (*probe.Sender, error) {
	t, err := transportbuiltin.Registry().NewSender(transportType)
	if err != nil {
		return nil, err
	}
	props := transport.Properties(transportProps).Map(resolver.Expand)
	if err := t.Initialize(props); err != nil {
		return nil, err
	}
	return probe.NewSender(t), nil
}

// probeOptions collects the options from the probe flags.
func probeOptions() ([]wire.ProbeOption, error) {
	payload, err := wire.ParsePayloadType(payloadName)
	if err != nil {
		return nil, err
	}
	opts := []wire.ProbeOption{
		wire.WithPayloadType(payload),
		wire.WithHopLimit(hopLimit),
		wire.WithServiceContractIDs(contractIDs...),
		wire.WithServiceInstanceIDs(instanceIDs...),
	}
	if clientID != "" {
		opts = append(opts, wire.WithClientID(clientID))
	}
	for _, rt := range respondTo {
		label, url := splitRespondTo(rt)
		opts = append(opts, wire.WithRespondTo(label, resolver.Expand(url)))
	}
	return opts, nil
}

// splitRespondTo splits "label=url". A bare URL gets the default label.
func splitRespondTo(s string) (string, string) {
	if i := strings.Index(s, "="); i > 0 && !strings.Contains(s[:i], "://") {
		return s[:i], s[i+1:]
	}
	return "cli", s
}

// advertiseHost picks the host responders should call back on.
func advertiseHost(r *endpoint.Resolver, flag string) string {
	if flag != "" {
		return r.Expand(flag)
	}
	host := r.Resolve(endpoint.LocalHost)
	if endpoint.IsSentinel(host) {
		logging.Warn("Cannot determine local address, advertising loopback",
			zap.String("resolved", host), zap.String("host", fallbackHost))
		return fallbackHost
	}
	return host
}

// startListener binds the response listener and serves it in the
// background. The returned channel yields Start's result after ctx is done.
func startListener(ctx context.Context) (*listener.Listener, string, <-chan error, error) {
	l, err := listener.New(listener.Config{
		Host:     listenHost,
		Port:     listenPort,
		CertPath: certPath,
		KeyPath:  keyPath,
	}, nil)
	if err != nil {
		return nil, "", nil, err
	}
	url, err := l.CallbackURL(advertiseHost(resolver, advertise))
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to bind response listener: %w", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- l.Start(ctx)
	}()
	return l, url, done, nil
}

// probeCmd sends one probe and reports what answered
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send a probe and print the services that answer",
	Long: `Send one discovery probe and collect responses for --wait.

A response listener is started first and its URL added to the probe's
respond-to list, so responders have somewhere to POST. With --no-listen
only the --respond-to URLs are used and nothing is collected.

Without --contract or --instance the probe is naked and every responder
answers with all of its services.`,
	Example: `  # Ask everything on the LAN
  argo probe

  # Ask for printers, answer in JSON, print machine-readable output
  argo probe --contract urn:example:printer --payload json --format json

  # Probe through Redis instead of multicast
  argo probe -t redis -P redisURL=redis://broker:6379/0

  # Callback on a specific interface's address
  argo probe --advertise '${ni:eth0:ipv4:sitelocal}'`,
	RunE: runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	if outputFormat != "cards" && outputFormat != "json" {
		return fmt.Errorf("unknown format %q (want cards or json)", outputFormat)
	}
	opts, err := probeOptions()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Progress goes to stderr when stdout carries JSON
	progressOut := cmd.OutOrStdout()
	if outputFormat == "json" {
		progressOut = cmd.ErrOrStderr()
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Probe",
		Command: "argo " + strings.Join(os.Args[1:], " "),
		Params: []ui.Param{
			{Key: "Transport", Value: transportType},
			{Key: "Contracts", Value: listOrAll(contractIDs)},
			{Key: "Instances", Value: listOrAll(instanceIDs)},
			{Key: "Payload", Value: payloadName},
		},
		Steps:           []string{"Start listener", "Send probe", "Collect responses"},
		Troubleshooting: probeTips,
		Verbose:         verbose,
		Output:          progressOut,
	})

	var (
		sent     *wire.Probe
		services []wire.Service
	)
	err = runner.Run(func(onStep ui.StepCallback) ([]ui.Param, error) {
		var l *listener.Listener
		if noListen {
			onStep(1, ui.StepSkipped, "--no-listen")
		} else {
			onStep(1, ui.StepRunning, "")
			lctx, cancel := context.WithCancel(ctx)
			var (
				url  string
				done <-chan error
				err  error
			)
			l, url, done, err = startListener(lctx)
			if err != nil {
				cancel()
				onStep(1, ui.StepFailed, "")
				return nil, err
			}
			defer func() {
				cancel()
				<-done
			}()
			opts = append(opts, wire.WithRespondTo(listenerLabel, url))
			onStep(1, ui.StepComplete, url)
		}

		onStep(2, ui.StepRunning, "")
		sender, err := newSender()
		if err != nil {
			onStep(2, ui.StepFailed, "")
			return nil, err
		}
		defer sender.Close()

		sent, err = sender.Probe(ctx, opts...)
		if sent != nil && verbose {
			if data, encErr := wire.EncodeProbeXML(sent); encErr == nil {
				runner.AddPayload("Probe (XML)", data)
			}
		}
		if err != nil {
			onStep(2, ui.StepFailed, "")
			return nil, err
		}
		onStep(2, ui.StepComplete, sent.ID())

		details := []ui.Param{{Key: "Probe ID", Value: sent.ID()}}
		if l == nil {
			onStep(3, ui.StepSkipped, "no listener")
			return details, nil
		}

		updates, unsubscribe := l.Subscribe()
		defer unsubscribe()
		onStep(3, ui.StepRunning, "waiting "+waitFor.String())
		responses := collect(ctx, updates, waitFor)
		services = l.Cache().Values()
		onStep(3, ui.StepComplete, fmt.Sprintf("%d responses", responses))

		return append(details,
			ui.Param{Key: "Responses", Value: strconv.Itoa(responses)},
			ui.Param{Key: "Services", Value: strconv.Itoa(len(services))},
		), nil
	})
	if err != nil {
		return err
	}
	if sent == nil || noListen {
		return nil
	}

	if outputFormat == "json" {
		data, err := wire.EncodeResponseJSON(wire.NewResponse(sent.ID(), services))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.Newline()
	printer.PrintServices(services)
	return nil
}

// collect counts responses until window elapses, ctx is done or updates
// closes.
func collect(ctx context.Context, updates <-chan *wire.Response, window time.Duration) int {
	timer := time.NewTimer(window)
	defer timer.Stop()
	n := 0
	for {
		select {
		case resp, ok := <-updates:
			if !ok {
				return n
			}
			logging.Debug("Response received",
				zap.String("probe_id", resp.ProbeID()),
				zap.Int("services", resp.Len()),
			)
			n++
		case <-timer.C:
			return n
		case <-ctx.Done():
			return n
		}
	}
}

// listenCmd runs only the response listener
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Run the response listener and print responses as they arrive",
	Long: `Run the response listener until interrupted, printing every response
POSTed to it. Useful with probes sent elsewhere (argo probe --no-listen
--respond-to <url>) or with several clients sharing one listener.

Besides the response path the listener serves GET/DELETE /responses for
the cache and /ws for a live WebSocket feed.`,
	Example: `  # Listen on the default port
  argo listen

  # HTTPS on 8443
  argo listen --port 8443 --cert cert.pem --key key.pem`,
	RunE: runListen,
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, url, done, err := startListener(ctx)
	if err != nil {
		return err
	}
	updates, unsubscribe := l.Subscribe()
	defer unsubscribe()

	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.PrintHeader("Response Listener", "argo listen",
		ui.Param{Key: "Callback", Value: url},
		ui.Param{Key: "Stream", Value: strings.Replace(strings.TrimSuffix(url, listener.DefaultResponsePath), "http", "ws", 1) + "/ws"},
	)
	printer.Println("Waiting for responses (Ctrl+C to stop)...")

	for {
		select {
		case resp, ok := <-updates:
			if !ok {
				return <-done
			}
			printer.Newline()
			printer.PrintSuccess("Response received",
				ui.Param{Key: "Response ID", Value: resp.ID()},
				ui.Param{Key: "Probe ID", Value: resp.ProbeID()},
				ui.Param{Key: "Services", Value: strconv.Itoa(resp.Len())},
			)
			printer.PrintServices(resp.Services())
		case <-ctx.Done():
			return <-done
		}
	}
}

// browseCmd launches the interactive browser
var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse services interactively",
	Long: `Launch an interactive service browser.

A probe is sent on start and again with 'p'. Every service that answers is
listed until its TTL expires; press enter for details, / to filter.`,
	Example: `  # Browse everything on the LAN
  argo browse

  # Browse printers only
  argo browse --contract urn:example:printer`,
	RunE: runBrowse,
}

func runBrowse(cmd *cobra.Command, args []string) error {
	opts, err := probeOptions()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	lctx, cancel := context.WithCancel(ctx)

	l, url, done, err := startListener(lctx)
	if err != nil {
		cancel()
		return err
	}
	defer func() {
		cancel()
		<-done
	}()
	opts = append(opts, wire.WithRespondTo(listenerLabel, url))

	sender, err := newSender()
	if err != nil {
		return err
	}
	defer sender.Close()

	updates, unsubscribe := l.Subscribe()
	defer unsubscribe()

	return tui.Run(ctx, tui.Config{
		Probe: func(ctx context.Context) error {
			_, err := sender.Probe(ctx, opts...)
			return err
		},
		Responses:   updates,
		Services:    l.Cache().Values,
		Clear:       l.Cache().Clear,
		ProbeWindow: waitFor,
	})
}

// Resolve flags
var (
	resolveKind   string
	strictResolve bool
)

// resolveCmd shows what an endpoint specification resolves to
var resolveCmd = &cobra.Command{
	Use:   "resolve <spec>...",
	Short: "Resolve interface specifications to addresses",
	Long: `Resolve each argument the way transport properties and --advertise are.

A bare argument is a spec of the form name[:scheme[:scope[:index]]], where
name is an interface or "localhost", scheme is ipv4 or ipv6, scope is
linklocal, sitelocal or global, and index picks among the matches. An
argument containing ${type:spec} tokens has each token expanded in place.`,
	Example: `  # First global IPv4 address of eth0
  argo resolve eth0

  # This host's site-local IPv6 address
  argo resolve localhost:ipv6

  # Expand a URL template, failing if anything does not resolve
  argo resolve --strict 'http://${ni:eth0:ipv4:sitelocal}:4005/response'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	for _, arg := range args {
		got, err := resolveArg(resolver, resolveKind, arg, strictResolve)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), got)
	}
	return nil
}

func resolveArg(r *endpoint.Resolver, kind, arg string, strict bool) (string, error) {
	if strings.Contains(arg, "${") {
		if strict {
			return r.ExpandStrict(arg)
		}
		return r.Expand(arg), nil
	}
	got := r.ResolveType(kind, arg)
	if strict && endpoint.IsSentinel(got) {
		return "", &endpoint.UnresolvedError{Token: arg + ": " + got}
	}
	return got, nil
}

func listOrAll(ids []string) string {
	if len(ids) == 0 {
		return "(any)"
	}
	return strings.Join(ids, ", ")
}
