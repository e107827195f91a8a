// Package modeltest provides small in-memory networks for tests.
package modeltest

import (
	"errors"
	"math"
	"sync"

	"github.com/Brownie44l1/catdog-api/internal/model"
)

// Network is a fake model.Network whose output is computed by Fn.
type Network struct {
	Shape model.Shape
	Fn    func(input []float32) ([]float32, error)

	mu     sync.Mutex
	calls  int
	closes int
}

// Constant always returns p as a single sigmoid output.
func Constant(shape model.Shape, p float32) *Network {
	return &Network{
		Shape: shape,
		Fn: func([]float32) ([]float32, error) {
			return []float32{p}, nil
		},
	}
}

// Logistic returns sigmoid(weight*mean(input) + bias), a stand-in for a
// real network that still depends on every input value.
func Logistic(shape model.Shape, weight, bias float64) *Network {
	return &Network{
		Shape: shape,
		Fn: func(input []float32) ([]float32, error) {
			var sum float64
			for _, v := range input {
				sum += float64(v)
			}
			mean := sum / float64(len(input))
			p := 1 / (1 + math.Exp(-(weight*mean + bias)))
			return []float32{float32(p)}, nil
		},
	}
}

// Failing returns err from every forward pass.
func Failing(shape model.Shape, err error) *Network {
	if err == nil {
		err = errors.New("forward failed")
	}
	return &Network{
		Shape: shape,
		Fn: func([]float32) ([]float32, error) {
			return nil, err
		},
	}
}

func (n *Network) InputShape() model.Shape {
	return n.Shape
}

func (n *Network) Forward(input []float32) ([]float32, error) {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
	return n.Fn(input)
}

func (n *Network) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closes++
	return nil
}

// Calls is the number of forward passes so far.
func (n *Network) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// Closed reports whether Close was called.
func (n *Network) Closed() bool {
	return n.Closes() > 0
}

// Closes is the number of times Close was called.
func (n *Network) Closes() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closes
}
