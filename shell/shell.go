// Package shell provides an interactive developer shell for driving an ACME
// order through its full lifecycle against a test server, publishing
// challenge responses with an in-process challenge response server.
package shell

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/abiosoft/ishell"
	"github.com/abiosoft/readline"
	"github.com/letsencrypt/challtestsrv"

	acmeclient "github.com/mlake/certflow/acme/client"
	"github.com/mlake/certflow/acme/resources"
	"github.com/mlake/certflow/cmd"
)

// BasePrompt is the prompt displayed by the shell.
const BasePrompt = "[ certflow ] > "

// Options configures a certflow shell: the underlying client configuration
// plus the ports the in-process challenge response server listens on.
type Options struct {
	acmeclient.ClientConfig
	// Port number the ACME server validates HTTP-01 challenges over.
	HTTPPort int
	// Port number the ACME server validates TLS-ALPN-01 challenges over.
	TLSPort int
	// Port number the ACME server validates DNS-01 challenges over.
	DNSPort int
}

// Shell is an ishell.Shell instance tailored for ACME: a client, an
// in-process challenge response server, and the orders created during the
// session.
type Shell struct {
	*ishell.Shell

	client   *acmeclient.Client
	challSrv *challtestsrv.ChallSrv
	orders   []*resources.Order
}

// New creates a Shell from the given Options. The challenge response server
// is not started until Run is called.
func New(opts *Options) *Shell {
	ish := ishell.NewWithConfig(&readline.Config{
		Prompt: BasePrompt,
	})

	challSrv, err := challtestsrv.New(challtestsrv.Config{
		HTTPOneAddrs:    []string{fmt.Sprintf(":%d", opts.HTTPPort)},
		TLSALPNOneAddrs: []string{fmt.Sprintf(":%d", opts.TLSPort)},
		DNSOneAddrs:     []string{fmt.Sprintf(":%d", opts.DNSPort)},
		Log:             log.New(os.Stdout, "challRespSrv: ", log.Ldate|log.Ltime),
	})
	cmd.FailOnError(err, "Unable to create challenge response server")

	client, err := acmeclient.NewClient(opts.ClientConfig)
	cmd.FailOnError(err, "Unable to create ACME client")

	shell := &Shell{
		Shell:    ish,
		client:   client,
		challSrv: challSrv,
	}

	for _, command := range shell.commands() {
		ish.AddCmd(command)
	}
	return shell
}

func (s *Shell) commands() []*ishell.Cmd {
	return []*ishell.Cmd{
		{
			Name: "newOrder",
			Func: s.newOrderHandler,
			Help: "Create a new order for one or more (possibly wildcard) domains",
		},
		{
			Name: "orders",
			Func: s.ordersHandler,
			Help: "List orders created in this session",
		},
		{
			Name: "getOrder",
			Func: s.getOrderHandler,
			Help: "Refresh an order and print it",
		},
		{
			Name: "authz",
			Func: s.authzHandler,
			Help: "Fetch and print an order's authorizations",
		},
		{
			Name: "solve",
			Func: s.solveHandler,
			Help: "Publish responses for an order's pending challenges and trigger validation",
		},
		{
			Name: "poll",
			Func: s.pollHandler,
			Help: "Wait for an order's authorizations to leave the pending state",
		},
		{
			Name: "finalize",
			Func: s.finalizeHandler,
			Help: "Finalize a ready order with a fresh CSR",
		},
		{
			Name: "getCert",
			Func: s.getCertHandler,
			Help: "Fetch the certificate chain for a valid order",
		},
		{
			Name: "whoami",
			Func: s.whoamiHandler,
			Help: "Print the active account URL and key thumbprint",
		},
	}
}

// Run starts the challenge response server and the interactive shell,
// blocking until the shell exits.
func (s *Shell) Run() {
	go s.challSrv.Run()
	defer s.challSrv.Shutdown()
	go cmd.CatchSignals(s.challSrv.Shutdown)

	s.Println("Welcome to certflow. Type \"help\" for available commands.")
	s.Shell.Run()
}

// pickOrder resolves an order from an optional index argument, defaulting to
// the most recently created order.
func (s *Shell) pickOrder(args []string) (*resources.Order, error) {
	if len(s.orders) == 0 {
		return nil, fmt.Errorf("no orders have been created in this session")
	}
	if len(args) == 0 {
		return s.orders[len(s.orders)-1], nil
	}
	index, err := strconv.Atoi(args[0])
	if err != nil || index < 0 || index >= len(s.orders) {
		return nil, fmt.Errorf("invalid order index %q", args[0])
	}
	return s.orders[index], nil
}
