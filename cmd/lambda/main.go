package main

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"scent-memory-network/internal/config"
	"scent-memory-network/internal/di"
)

var (
	chiLambda *chiadapter.ChiLambdaV2
	container *di.Container

	coldStart     = true
	coldStartTime time.Time
)

func init() {
	coldStartTime = time.Now()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.IsLambda = true

	// The cleanup only matters for long-running processes; the sandbox is
	// frozen between invocations.
	container, _, err = di.InitializeContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	router, ok := container.GetRouter().(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(router)

	container.Logger.Info("Lambda cold start completed", zap.Duration("duration", time.Since(coldStartTime)))
}

// Handler maps API Gateway authorizer claims onto the headers the router
// trusts in Lambda mode, then proxies the request through chi.
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	// Clients must not be able to claim a user themselves
	delete(req.Headers, "x-user-id")
	delete(req.Headers, "x-api-gateway-authorized")

	if authorizer := req.RequestContext.Authorizer; authorizer != nil {
		userID, email := claims(authorizer)
		if userID != "" {
			req.Headers["X-User-ID"] = userID
			req.Headers["X-User-Email"] = email
			req.Headers["X-API-Gateway-Authorized"] = "true"
		}
	} else {
		container.Logger.Warn("No authorizer context found in request",
			zap.String("path", req.RequestContext.HTTP.Path),
		)
	}

	resp, err := chiLambda.ProxyWithContextV2(ctx, req)
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	if coldStart {
		resp.Headers["X-Cold-Start"] = "true"
		coldStart = false
	} else {
		resp.Headers["X-Cold-Start"] = "false"
	}
	if req.RequestContext.RequestID != "" {
		resp.Headers["X-Request-ID"] = req.RequestContext.RequestID
	}

	if resp.StatusCode >= 500 {
		container.Logger.Error("Lambda error response",
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", resp.Body),
		)
	}
	return resp, err
}

// claims reads the user from either a JWT or a Lambda authorizer.
func claims(a *events.APIGatewayV2HTTPRequestContextAuthorizerDescription) (userID, email string) {
	if a.JWT != nil {
		return a.JWT.Claims["sub"], a.JWT.Claims["email"]
	}
	if a.Lambda != nil {
		userID, _ = a.Lambda["sub"].(string)
		email, _ = a.Lambda["email"].(string)
	}
	return userID, email
}

func main() {
	lambda.Start(Handler)
}
