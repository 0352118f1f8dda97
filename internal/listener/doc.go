// Package listener is the client side HTTP endpoint that responders POST
// their responses to.
//
// Every service in an accepted response is stored in an expiring cache
// keyed by service id, with the service's TTL in minutes. A later response
// for the same id replaces the earlier one.
//
// # Routes
//
//	POST   /response    accept a Response (application/xml or application/json)
//	GET    /responses   the live cache as {"cache":[...]} ordered by id
//	DELETE /responses   clear the cache
//	GET    /ws          websocket stream of accepted responses as JSON
//	GET    /healthz     liveness and cache size
//
// POST answers 202 on success, 400 when the body does not decode and 415
// for any other content type.
//
// # Usage Example
//
//	l, err := listener.New(listener.Config{Port: 4005}, nil)
//	if err != nil {
//	    return err
//	}
//	addr, err := l.Bind()
//	if err != nil {
//	    return err
//	}
//	fmt.Println("callback:", "http://"+addr.String()+"/response")
//
//	// Start blocks until ctx is done, then shuts down gracefully
//	return l.Start(ctx)
//
// # TLS
//
// When CertPath and KeyPath are set the listener serves HTTPS with TLS 1.2
// or newer. Probes must then carry https:// respond-to URLs.
package listener
