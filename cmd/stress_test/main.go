package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/maiandreh/ecommerce-fullstack/internal/adapter/handler"
)

// Fires concurrent orders for one product at a running server and checks
// that no more units were sold than the stock that was available.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	productID := flag.Int64("product", 5, "product to order")
	quantity := flag.Int("quantity", 1, "units per order")
	totalRequests := flag.Int("requests", 50, "number of concurrent orders")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	initialStock, err := fetchStock(client, *baseURL, *productID)
	if err != nil {
		log.Fatalf("failed to read stock: %v", err)
	}
	log.Printf("product %d: initial stock %d", *productID, initialStock)

	// Counters
	var successCount atomic.Int32
	var stockoutCount atomic.Int32
	var conflictCount atomic.Int32
	var errorCount atomic.Int32

	body, _ := json.Marshal(handler.PlaceOrderRequest{
		Items: []handler.OrderItemRequest{{ProductID: productID, Quantity: quantity}},
	})

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req, _ := http.NewRequest(http.MethodPost, *baseURL+"/api/v1/orders", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Idempotency-Key", uuid.NewString())

			resp, err := client.Do(req)
			if err != nil {
				errorCount.Add(1)
				return
			}
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusCreated:
				successCount.Add(1)
			case http.StatusBadRequest:
				stockoutCount.Add(1)
			case http.StatusConflict:
				conflictCount.Add(1)
			default:
				errorCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	finalStock, err := fetchStock(client, *baseURL, *productID)
	if err != nil {
		log.Fatalf("failed to read stock: %v", err)
	}

	sold := int(successCount.Load()) * *quantity
	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Total requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", successCount.Load())
	fmt.Printf("Out of stock:     %d\n", stockoutCount.Load())
	fmt.Printf("Conflicts:        %d\n", conflictCount.Load())
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Units sold:       %d\n", sold)
	fmt.Printf("Stock:            %d -> %d\n", initialStock, finalStock)
	fmt.Printf("Elapsed:          %v\n", elapsed)
	fmt.Println("==========================================")

	if sold > initialStock || initialStock-finalStock != sold {
		log.Fatalf("FAIL: sold %d units with %d in stock (final %d)", sold, initialStock, finalStock)
	}
	fmt.Println("PASS: no overselling")
}

func fetchStock(client *http.Client, baseURL string, productID int64) (int, error) {
	for page := 0; ; page++ {
		resp, err := client.Get(fmt.Sprintf("%s/api/v1/products?page=%d&size=100", baseURL, page))
		if err != nil {
			return 0, err
		}

		var result handler.ProductPageResponse
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			return 0, err
		}

		for _, p := range result.Content {
			if p.ID == productID {
				return p.Stock, nil
			}
		}
		if page+1 >= result.TotalPages {
			return 0, fmt.Errorf("product %d not found", productID)
		}
	}
}
