// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chanpool

import (
	"context"
	"time"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/gridmesh/sdk/pkg/logger"
)

// DefaultDialer returns a Dialer that chains the client-side prometheus
// interceptors (so every RPC issued over a leased channel is counted and
// timed) with logging of connection-level events, dialing in blocking mode
// so Lease never hands out a channel that hasn't finished its handshake.
func DefaultDialer(extra ...grpc.DialOption) Dialer {
	log := logger.GetLogger("chanpool", "Dial")
	return func(target string) (*grpc.ClientConn, error) {
		opts := []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithBlock(),
			grpc.WithChainUnaryInterceptor(grpcmiddleware.ChainUnaryClient(
				grpcprometheus.UnaryClientInterceptor,
			)),
			grpc.WithChainStreamInterceptor(grpcmiddleware.ChainStreamClient(
				grpcprometheus.StreamClientInterceptor,
			)),
		}
		opts = append(opts, extra...)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		conn, err := grpc.DialContext(ctx, target, opts...)
		if err != nil {
			log.Error("dial failed", logger.String("target", target), logger.Error(err))
			return nil, err
		}
		log.Info("channel dialed", logger.String("target", target))
		return conn, nil
	}
}
