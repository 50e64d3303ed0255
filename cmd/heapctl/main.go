// Command heapctl exercises and inspects segregated free-list heaps.
package main

func main() {
	execute()
}
