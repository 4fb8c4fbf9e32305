// Package torextractor captures onion services through Tor.
package torextractor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
	pageextractor "github.com/nao1215/autoarchiver/internal/modules/page_extractor"
	"github.com/nao1215/autoarchiver/internal/tor"
	"github.com/nao1215/autoarchiver/internal/webpage"
)

// Name is the status origin of successful captures.
const Name = "tor_extractor"

// OnionAddressKey holds the verified v3 service address of the item.
const OnionAddressKey = "onion_address"

// Extractor fetches onion pages through a SOCKS5 transport. The HTTP stack
// is built in Setup, once the proxy is known to work.
type Extractor struct {
	env        *module.Env
	proxyAddr  string
	embedded   bool
	checkProxy bool
	timeout    time.Duration
	daemon     *tor.Daemon
	spider     *webpage.Spider
	logger     *slog.Logger
}

// New is the module factory.
func New(env *module.Env) (any, error) {
	e := &Extractor{
		env:        env,
		proxyAddr:  env.Options.String("proxy"),
		embedded:   env.Options.Bool("embedded"),
		checkProxy: env.Options.Bool("check_proxy"),
		timeout:    pageextractor.Timeout(env.Options),
		logger:     env.Logger,
	}
	if e.embedded {
		e.daemon = tor.NewDaemon(env.Options.Seconds("startup_timeout"))
	}
	return e, nil
}

// Setup starts the embedded daemon or checks the configured proxy, then
// builds the HTTP client.
func (e *Extractor) Setup(ctx context.Context) error {
	transport, err := e.transport(ctx)
	if err != nil {
		return err
	}
	if e.checkProxy {
		if err := transport.Check(ctx); err != nil {
			e.stopDaemon()
			return fmt.Errorf("tor proxy %s: %w", transport.Addr(), err)
		}
	}
	e.logger.Info("tor transport ready", "proxy", transport.Addr(), "embedded", e.embedded)

	opts := append(pageextractor.ClientOptions(e.env), webpage.WithHTTPClient(transport.HTTPClient(nil)))
	e.spider = webpage.NewSpider(webpage.NewClient(opts...), pageextractor.SpiderOptions(e.env.Options)...)
	return nil
}

func (e *Extractor) transport(ctx context.Context) (*tor.Transport, error) {
	if !e.embedded {
		return tor.NewTransport(e.proxyAddr, e.timeout)
	}
	e.logger.Info("starting embedded tor daemon, this can take a few minutes")
	if err := e.daemon.Start(ctx); err != nil {
		return nil, err
	}
	return e.daemon.Transport(e.timeout)
}

// Cleanup stops the embedded daemon.
func (e *Extractor) Cleanup() error {
	return e.stopDaemon()
}

func (e *Extractor) stopDaemon() error {
	if e.daemon == nil {
		return nil
	}
	return e.daemon.Stop()
}

// Suitable accepts http(s) URLs on onion hosts.
func (e *Extractor) Suitable(rawURL string) bool {
	return tor.IsOnionURL(rawURL)
}

// Download implements module.Extractor. Hosts that are not valid v3 onion
// addresses are declined without a request.
func (e *Extractor) Download(ctx context.Context, item *model.Item) (*model.Item, error) {
	u, err := item.URL()
	if err != nil {
		return nil, err
	}
	host, err := tor.OnionHost(u)
	if err != nil {
		e.logger.Warn("declining invalid onion address", "url", u)
		return nil, nil
	}
	if e.spider == nil {
		return nil, fmt.Errorf("%s used before setup", Name)
	}
	res, err := webpage.Capture(ctx, e.spider, item, Name)
	if err != nil || res == nil {
		return nil, err
	}
	res.Set(OnionAddressKey, host)
	return res, nil
}
