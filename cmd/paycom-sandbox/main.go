// Command paycom-sandbox serves a simulated Paycom endpoint for local runs.
// Point PAYCOM_URL at it and use PAYCOM_KEY as the shared key.
//
// Card numbers ending in 0002 are declined, 0119 trigger a system error.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"ms-paycom/internal/logger"
	"ms-paycom/internal/paycom"
	"ms-paycom/internal/paycom/paycomtest"
)

func main() {
	addr := flag.String("addr", ":8099", "Listen address")
	flag.Parse()

	logger := logger.NewLogger()
	defer logger.Close()

	_ = godotenv.Load()
	key := envOr("PAYCOM_KEY", "sandbox-key")

	gateway := paycomtest.NewGateway(key)
	gateway.Route = route

	r := chi.NewRouter()
	r.Post("/*", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err == nil {
			logger.LogGateway(r.PostForm.Get(paycom.FieldType), "sandbox request for order "+r.PostForm.Get(paycom.FieldOrderID))
		}
		gateway.ServeHTTP(w, r)
	})

	logger.Info("HTTP", fmt.Sprintf("🚀 Paycom sandbox listening on %s", *addr))
	if err := http.ListenAndServe(*addr, r); err != nil {
		logger.Fatal("HTTP", err.Error())
	}
}

// route picks the reply from the card number's last digits.
func route(g *paycomtest.Gateway, req map[string]string) paycom.Response {
	switch card := req[paycom.FieldCCNumber]; {
	case strings.HasSuffix(card, "0002"):
		return paycomtest.Decline("200")(g, req)
	case strings.HasSuffix(card, "0119"):
		return paycomtest.SystemError(g, req)
	}
	return paycomtest.Approve(g, req)
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
