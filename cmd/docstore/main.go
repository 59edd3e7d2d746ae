// Точка входа docstore — сервиса загрузки и выдачи документов.
package main

func main() {
	Execute()
}
