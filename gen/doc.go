// Package gen holds the protobuf and gRPC bindings for proto/orderbook.proto.
package gen

//go:generate protoc --proto_path=../proto --go_out=. --go_opt=paths=source_relative --go-grpc_out=. --go-grpc_opt=paths=source_relative orderbook.proto
