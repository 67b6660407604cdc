// chat-health is a lean sidecar health endpoint. It answers liveness
// itself and proxies readiness to the main chatd server, so load
// balancers can probe without touching the authenticated API stack.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	addr := flag.String("addr", ":8081", "listen address for the health sidecar")
	target := flag.String("target", "http://127.0.0.1:8080", "base URL of the chatd server")
	ver := flag.String("version", "dev", "version string to return")
	flag.Parse()

	client := &fasthttp.Client{
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}

	h := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/health", "/healthz":
			ctx.Response.Header.Set("Content-Type", "application/json")
			ctx.SetStatusCode(fasthttp.StatusOK)
			_, _ = ctx.WriteString(fmt.Sprintf("{\"status\":\"ok\",\"version\":\"%s\"}", *ver))
		case "/readyz":
			status, body, err := client.GetTimeout(nil, *target+"/readyz", 2*time.Second)
			ctx.Response.Header.Set("Content-Type", "application/json")
			if err != nil {
				ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
				_, _ = ctx.WriteString(`{"status":"chatd unreachable"}`)
				return
			}
			ctx.SetStatusCode(status)
			_, _ = ctx.Write(body)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}

	fmt.Printf("chat-health listening on %s -> %s\n", *addr, *target)
	srv := &fasthttp.Server{
		Handler:            h,
		Name:               "chat-health",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	if err := srv.ListenAndServe(*addr); err != nil {
		fmt.Printf("chat-health exit: %v\n", err)
	}
}
